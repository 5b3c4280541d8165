package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIdempotentRouter(t *testing.T, status int) (*gin.Engine, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	var calls int32
	r := gin.New()
	r.Use(UserID())
	handler := func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(status, gin.H{"call": n, "user": c.GetString(ContextKeyUserID)})
	}
	idempotent := IdempotencyMiddleware(DefaultIdempotencyConfig(client))
	r.POST("/payments", idempotent, handler)
	r.POST("/transfers/:token/receive", idempotent, handler)
	return r, &calls
}

func doPost(r http.Handler, key, user, body string) *httptest.ResponseRecorder {
	return doPostTo(r, "/payments", key, user, body)
}

func doPostTo(r http.Handler, path, key, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUserID_MissingHeader(t *testing.T) {
	r := gin.New()
	r.Use(UserID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestUserID_StoresValue(t *testing.T) {
	r := gin.New()
	r.Use(UserID())
	r.GET("/", func(c *gin.Context) {
		id, ok := GetUserID(c)
		assert.True(t, ok)
		c.String(http.StatusOK, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, " user-1 ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "user-1", w.Body.String())
}

func TestIdempotency_MissingKey(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	w := doPost(r, "", "user-1", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_IDEMPOTENCY_KEY")
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusCreated)

	first := doPost(r, "k1", "user-1", `{"a":1}`)
	second := doPost(r, "k1", "user-1", `{"a":1}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	r, _ := newIdempotentRouter(t, http.StatusOK)

	doPost(r, "k1", "user-1", `{"a":1}`)
	w := doPost(r, "k1", "user-1", `{"a":2}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "IDEMPOTENCY_KEY_REUSED")
}

func TestIdempotency_ServerErrorsAreNotReplayed(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusBadGateway)

	doPost(r, "k1", "user-1", `{}`)
	doPost(r, "k1", "user-1", `{}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_SameKeyFromTwoUsers(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	alice := doPostTo(r, "/transfers/tok-1/receive", "k1", "alice", `{}`)
	bob := doPostTo(r, "/transfers/tok-1/receive", "k1", "bob", `{}`)

	assert.Equal(t, http.StatusOK, alice.Code)
	assert.Equal(t, http.StatusOK, bob.Code)
	assert.Contains(t, alice.Body.String(), `"user":"alice"`)
	assert.Contains(t, bob.Body.String(), `"user":"bob"`)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_SameKeyOnTwoRoutes(t *testing.T) {
	r, calls := newIdempotentRouter(t, http.StatusOK)

	doPostTo(r, "/transfers/tok-1/receive", "k1", "alice", `{}`)
	doPostTo(r, "/transfers/tok-2/receive", "k1", "alice", `{}`)
	w := doPost(r, "k1", "alice", `{}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestIdempotency_StoreDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	var calls int32
	r := gin.New()
	r.Use(UserID())
	r.POST("/payments", IdempotencyMiddleware(DefaultIdempotencyConfig(client)), func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Status(http.StatusCreated)
	})

	w := doPost(r, "k1", "alice", `{}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
