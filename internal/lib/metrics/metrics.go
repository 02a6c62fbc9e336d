// Package metrics содержит счётчики prometheus для операций с учётными записями.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для метки result.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultInvalid   = "invalid"
	ResultForbidden = "forbidden"
	ResultError     = "error"
)

// Metrics - набор метрик сервиса.
type Metrics struct {
	SignIns         *prometheus.CounterVec
	SignUps         *prometheus.CounterVec
	PasswordChanges *prometheus.CounterVec
	ProfileUpdates  *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by result.",
		}, []string{"result"}),
		SignUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "auth",
			Name:      "sign_ups_total",
			Help:      "Sign-up attempts by result.",
		}, []string{"result"}),
		PasswordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "account",
			Name:      "password_changes_total",
			Help:      "Password change attempts by result.",
		}, []string{"result"}),
		ProfileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "account",
			Name:      "profile_updates_total",
			Help:      "Profile update attempts by result.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blog",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.SignIns, m.SignUps, m.PasswordChanges, m.ProfileUpdates, m.HTTPDuration)
	return m
}

// Middleware измеряет длительность HTTP-запросов. Маршрут берётся из шаблона chi,
// чтобы идентификаторы пользователей не попадали в метки.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
