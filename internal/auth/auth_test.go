package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	return v
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.True(t, apperr.Is(err, apperr.CodeConfiguration))
}

func TestVerify_ValidToken(t *testing.T) {
	v := testVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"role":    "seller",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	principal, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), principal.UserID)
	assert.Equal(t, "seller", principal.Role)
}

func TestVerify_RoleDefaultsToCustomer(t *testing.T) {
	v := testVerifier(t)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	principal, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "customer", principal.Role)
}

func TestVerify_Rejections(t *testing.T) {
	v := testVerifier(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not.a.jwt"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(time.Hour).Unix(),
		})},
		{"expired token", signToken(t, testSecret, jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing user id", signToken(t, testSecret, jwt.MapClaims{
			"role": "customer",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
		})
	}
}

func TestVerify_RejectsNonHMACAlgorithm(t *testing.T) {
	v := testVerifier(t)

	// alg=none with an empty signature must never pass
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": 42,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func authTestRouter(t *testing.T, handlers ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, principal)
	})
	router.GET("/protected", chain...)
	return router
}

func TestRequireAuth(t *testing.T) {
	v := testVerifier(t)
	router := authTestRouter(t, RequireAuth(v))

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"role":    "customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid bearer token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not a bearer scheme", "Basic abc123", http.StatusUnauthorized},
		{"invalid token", "Bearer garbage", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	v := testVerifier(t)
	router := authTestRouter(t, RequireAuth(v), RequireRole("admin", "seller"))

	adminToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 1,
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	customerToken := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"role":    "customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
