package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func token(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	exp := time.Now().Add(time.Hour).Unix()

	router := gin.New()
	router.GET("/write", RequireRole(WriteRoles...), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("userID")+"/"+c.GetString("userRole"))
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
		body   string
	}{
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"not bearer", "Token abc", "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + token(t, "other", jwt.MapClaims{"sub": "u1", "role": RoleAdmin, "exp": exp}), "", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + token(t, "test-secret", jwt.MapClaims{"sub": "u1", "role": RoleAdmin, "exp": time.Now().Add(-time.Hour).Unix()}), "", http.StatusUnauthorized, ""},
		{"no role", "Bearer " + token(t, "test-secret", jwt.MapClaims{"sub": "u1", "exp": exp}), "", http.StatusForbidden, ""},
		{"viewer cannot write", "Bearer " + token(t, "test-secret", jwt.MapClaims{"sub": "u1", "role": RoleViewer, "exp": exp}), "", http.StatusForbidden, ""},
		{"analyst", "Bearer " + token(t, "test-secret", jwt.MapClaims{"sub": "u1", "role": RoleAnalyst, "exp": exp}), "", http.StatusOK, "u1/analyst"},
		{"cookie", "", token(t, "test-secret", jwt.MapClaims{"sub": "u2", "role": RoleAdmin, "exp": exp}), http.StatusOK, "u2/admin"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/write", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if tt.cookie != "" {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.want)
		}
		if tt.body != "" && w.Body.String() != tt.body {
			t.Errorf("%s: body = %q, want %q", tt.name, w.Body.String(), tt.body)
		}
	}
}

func TestGetJWTSecretFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "debug")
	if got := string(GetJWTSecret()); got != "default_super_secret_key" {
		t.Errorf("GetJWTSecret = %q, want the development fallback", got)
	}

	t.Setenv("GIN_MODE", "release")
	defer func() {
		if recover() == nil {
			t.Error("GetJWTSecret did not panic without a secret in release mode")
		}
	}()
	GetJWTSecret()
}
