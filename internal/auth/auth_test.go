package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	other, err := bcrypt.GenerateFromPassword([]byte("other"), bcrypt.MinCost)
	require.NoError(t, err)

	return New("test-secret", time.Hour,
		[]string{"Owner@Shop.com"},
		map[string]string{"owner@shop.com": string(hash), "former@shop.com": string(other)},
	)
}

func TestLoginAndSession(t *testing.T) {
	a := newTestAuth(t)

	token, session, err := a.Login(" OWNER@shop.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "owner@shop.com", session.Email)

	got, err := a.CurrentSession(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@shop.com", got.Email)
}

func TestLoginRejects(t *testing.T) {
	a := newTestAuth(t)

	_, _, err := a.Login("owner@shop.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login("nobody@shop.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// has a password but is no longer allow-listed
	_, _, err = a.Login("former@shop.com", "other")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCurrentSessionRejects(t *testing.T) {
	a := newTestAuth(t)

	_, err := a.CurrentSession("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := a.Login("owner@shop.com", "s3cret")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.CurrentSession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Email:            "owner@shop.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := forged.SignedString([]byte("someone-elses-secret"))
	require.NoError(t, err)
	a.now = time.Now
	_, err = a.CurrentSession(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCurrentSessionNotAllowListed(t *testing.T) {
	a := newTestAuth(t)
	claims := &Claims{
		Email:            "intruder@shop.com",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.CurrentSession(signed)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newTestAuth(t)
	token, _, err := a.Login("owner@shop.com", "s3cret")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin/ping", RequireAdmin(a), func(c *gin.Context) {
		s, ok := SessionFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, s.Email)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "owner@shop.com", w.Body.String())

	// query tokens only count on a websocket handshake
	req = httptest.NewRequest(http.MethodGet, "/admin/ping?token="+token, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/ping?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")))
}
