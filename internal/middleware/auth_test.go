package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(v *JWTVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(v), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	return r
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestVerifyRejectsWrongSecretAndExpired(t *testing.T) {
	other, err := NewJWTVerifier("other").Issue("user-1", time.Hour)
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret").Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewJWTVerifier("secret").Issue("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = NewJWTVerifier("secret").Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret").Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	v := NewJWTVerifier("secret")
	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)
	r := setupRouter(v)

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"bearer header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"token header", func(req *http.Request) { req.Header.Set("token", token) }, http.StatusOK},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "token", Value: token}) }, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "user-1", w.Body.String())
			}
		})
	}
}

func TestEmptySecretRejectsForgedTokens(t *testing.T) {
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "victim"})
	raw, err := forged.SignedString([]byte(""))
	require.NoError(t, err)

	for _, secret := range []string{"", "   "} {
		v := NewJWTVerifier(secret)
		_, err = v.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = v.Issue("user-1", time.Hour)
		assert.ErrorIs(t, err, ErrEmptySecret)
	}
}
