package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, role string, caps []string, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role:         role,
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func identityEcho(t *testing.T, captured *models.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		*captured = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	var got models.Identity
	handler := Auth(testSecret)(identityEcho(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "nurse-7", models.RoleNurse, []string{models.CapabilityReadVitals}, testSecret))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nurse-7", got.ActorID)
	assert.Equal(t, models.RoleNurse, got.Role)
	assert.True(t, got.HasCapability(models.CapabilityReadVitals))
}

func TestAuthAcceptsQueryToken(t *testing.T) {
	var got models.Identity
	handler := Auth(testSecret)(identityEcho(t, &got))

	token := signToken(t, "doctor-2", models.RoleDoctor, nil, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doctor-2", got.ActorID)
}

func TestAuthRejections(t *testing.T) {
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no credentials", func(_ *http.Request) {}},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "nurse-7", models.RoleNurse, nil, "other-secret"))
		}},
		{"garbage token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.jwt")
		}},
		{"empty subject", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "", models.RoleNurse, nil, testSecret))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
