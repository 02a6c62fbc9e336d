package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type signUp struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max_bytes=72,password_policy"`
	Confirm  string `json:"confirm" validate:"eqfield=Password"`
	Image    string `json:"image,omitempty" validate:"omitempty,url"`
}

func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Passw0rd", true},
		{"12345678a", true},
		{"пароль123", true},
		{"password", false},
		{"12345678", false},
		{"", false},
		{"!!!!____", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordPolicy(tt.in))
		})
	}
}

func TestCheck(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		in         signUp
		wantFields map[string]string
	}{
		{
			name: "valid",
			in:   signUp{Email: "a@example.com", Password: "Passw0rd", Confirm: "Passw0rd"},
		},
		{
			name: "missing email and weak password",
			in:   signUp{Password: "password", Confirm: "password"},
			wantFields: map[string]string{
				"email":    "is required",
				"password": "must contain at least one letter and one digit",
			},
		},
		{
			name: "short password",
			in:   signUp{Email: "a@example.com", Password: "Pa1", Confirm: "Pa1"},
			wantFields: map[string]string{
				"password": "must be at least 8 characters",
			},
		},
		{
			name: "multi-byte password over 72 bytes",
			in: signUp{
				Email:    "a@example.com",
				Password: strings.Repeat("пароль", 6) + "1",
				Confirm:  strings.Repeat("пароль", 6) + "1",
			},
			wantFields: map[string]string{
				"password": "must be at most 72 bytes",
			},
		},
		{
			name: "exactly 72 bytes",
			in: signUp{
				Email:    "a@example.com",
				Password: strings.Repeat("ж", 35) + "12",
				Confirm:  strings.Repeat("ж", 35) + "12",
			},
		},
		{
			name: "confirmation mismatch",
			in:   signUp{Email: "a@example.com", Password: "Passw0rd", Confirm: "Passw0rd!"},
			wantFields: map[string]string{
				"confirm": "does not match",
			},
		},
		{
			name: "bad email and url",
			in:   signUp{Email: "nope", Password: "Passw0rd", Confirm: "Passw0rd", Image: "not a url"},
			wantFields: map[string]string{
				"email": "must be a valid email address",
				"image": "must be a valid URL",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(v, tt.in)
			if tt.wantFields == nil {
				assert.True(t, res.OK())
				assert.Empty(t, res.Fields())
				return
			}
			assert.False(t, res.OK())
			assert.Equal(t, tt.wantFields, res.Fields())
		})
	}
}

func TestFailed(t *testing.T) {
	res := Failed("userId", "forbidden")
	assert.False(t, res.OK())
	assert.Equal(t, map[string]string{"userId": "forbidden"}, res.Fields())
}
