package smtp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/blog-auth/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer отвечает как SMTP-сервер без STARTTLS.
func fakeServer(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 AUTH PLAIN\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestTransport_ConnectRequiresStartTLS(t *testing.T) {
	host, port := fakeServer(t)
	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port}, newNoopLogger())

	client, err := tr.Connect()
	assert.Nil(t, client)
	require.ErrorIs(t, err, ErrNoStartTLS)
}

func TestTransport_ConnectDialError(t *testing.T) {
	tr := NewTransport(config.SMTP{SMTPHost: "127.0.0.1", SMTPPort: "1"}, newNoopLogger())

	_, err := tr.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.Connect")
}

func TestTransport_Sender(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTP
		want string
	}{
		{name: "explicit from", cfg: config.SMTP{SMTPUser: "mailer", From: "no-reply@blog.local"}, want: "no-reply@blog.local"},
		{name: "fallback to user", cfg: config.SMTP{SMTPUser: "mailer@blog.local"}, want: "mailer@blog.local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTransport(tt.cfg, newNoopLogger()).Sender())
		})
	}
}
