package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
)

const testIssuer = "https://keycloak.example.com/realms/fieldops"

// jwksServer 提供单个 RSA 公钥的 JWKS 端点
func jwksServer(t *testing.T, kid string, key *rsa.PublicKey) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[{"kid":"` + kid + `","kty":"RSA","use":"sig","n":"` +
			base64.RawURLEncoding.EncodeToString(key.N.Bytes()) + `","e":"` +
			base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()) + `"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func testRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": auth.UserID(c)})
	})
	return router
}

// TestKeycloakTokenValidator_ValidateToken 测试签名、issuer 与过期校验
func TestKeycloakTokenValidator_ValidateToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, "k1", &key.PublicKey)
	validator := auth.NewKeycloakTokenValidator(testIssuer, srv.URL)
	assert.Equal(t, testIssuer, validator.Issuer())

	valid := signToken(t, key, "k1", &auth.KeycloakClaims{
		PreferredUsername: "dev.kumar",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-jto",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	claims, err := validator.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "acc-jto", claims.Subject)
	assert.Equal(t, "dev.kumar", claims.PreferredUsername)

	expired := signToken(t, key, "k1", &auth.KeycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-jto",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	_, err = validator.ValidateToken(expired)
	assert.Error(t, err)

	wrongIssuer := signToken(t, key, "k1", &auth.KeycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-jto",
			Issuer:    "https://evil.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = validator.ValidateToken(wrongIssuer)
	assert.Error(t, err)

	_, err = validator.ValidateToken("invalid.token.here")
	assert.Error(t, err)

	_, err = validator.GetPublicKey("unknown-kid")
	assert.Error(t, err)
}

// TestKeycloakAuthMiddleware 测试中间件写入账号 ID
func TestKeycloakAuthMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, "k1", &key.PublicKey)
	router := testRouter(auth.KeycloakAuthMiddleware(auth.NewKeycloakTokenValidator(testIssuer, srv.URL)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer invalid.token.here")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := signToken(t, key, "k1", &auth.KeycloakClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-sde",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"acc-sde"}`, w.Body.String())
}

// TestHeaderAuthMiddleware 测试开发环境请求头认证
func TestHeaderAuthMiddleware(t *testing.T) {
	router := testRouter(auth.HeaderAuthMiddleware())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", " acc-jto ")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"acc-jto"}`, w.Body.String())
}

// TestPermissionCache 测试缓存过期与清空
func TestPermissionCache(t *testing.T) {
	cache := auth.NewPermissionCache(50 * time.Millisecond)
	cache.Set("a|b", true)
	v, ok := cache.Get("a|b")
	assert.True(t, ok)
	assert.True(t, v)

	cache.Clear()
	_, ok = cache.Get("a|b")
	assert.False(t, ok)

	cache.Set("a|b", false)
	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get("a|b")
	assert.False(t, ok)

	disabled := auth.NewPermissionCache(0)
	disabled.Set("x", true)
	_, ok = disabled.Get("x")
	assert.False(t, ok)
}
