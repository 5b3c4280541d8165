package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/prohmpiriya/seat-rush/pkg/response"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client's retry key
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// DefaultIdempotencyTTL covers client retries of a payment or transfer call
	DefaultIdempotencyTTL = 5 * time.Minute
	// DefaultProcessingTTL bounds how long an in-flight call blocks its retries
	DefaultProcessingTTL = 60 * time.Second
	IdempotencyKeyPrefix = "idempotency:"
)

type replayState string

const (
	replayInFlight replayState = "in_flight"
	replayDone     replayState = "done"
)

// replayRecord is what a retry with the same key gets back
type replayRecord struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	Body        string      `json:"body,omitempty"`
}

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	Store *pkgredis.Client
	// TTL of answered calls
	TTL time.Duration
	// TTL of calls still running
	ProcessingTTL time.Duration
}

// DefaultIdempotencyConfig returns default configuration
func DefaultIdempotencyConfig(store *pkgredis.Client) *IdempotencyConfig {
	return &IdempotencyConfig{
		Store:         store,
		TTL:           DefaultIdempotencyTTL,
		ProcessingTTL: DefaultProcessingTTL,
	}
}

// IdempotencyMiddleware replays the first answer to a user's call on a route
// for every retry carrying the same X-Idempotency-Key. It must run after
// UserID. Keys are scoped by user and route, so two users, or one user on two
// routes, never share a record.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	ttl := config.TTL
	if ttl == 0 {
		ttl = DefaultIdempotencyTTL
	}
	processingTTL := config.ProcessingTTL
	if processingTTL == 0 {
		processingTTL = DefaultProcessingTTL
	}
	store := config.Store

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.ErrorBody("MISSING_IDEMPOTENCY_KEY", "X-Idempotency-Key header is required"))
			return
		}
		userID, _ := GetUserID(c)

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		storeKey := idempotencyStoreKey(userID, routeOf(c), key)
		fingerprint := requestFingerprint(c.Request.Method, body)

		pending, _ := json.Marshal(replayRecord{State: replayInFlight, Fingerprint: fingerprint})
		claimed, err := store.SetNX(ctx, storeKey, string(pending), processingTTL).Result()
		if err != nil {
			// fail open: a store outage must not block payments
			logger.Get().WarnContext(ctx, "Idempotency store unavailable",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !claimed {
			replay(c, store, storeKey, fingerprint)
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw

		c.Next()

		// 5xx answers are dropped so the client's retry runs again
		if rw.Status() >= http.StatusInternalServerError {
			store.Del(ctx, storeKey)
			return
		}
		done, _ := json.Marshal(replayRecord{
			State:       replayDone,
			Fingerprint: fingerprint,
			Status:      rw.Status(),
			Body:        rw.body.String(),
		})
		if err := store.Set(ctx, storeKey, string(done), ttl).Err(); err != nil {
			logger.Get().WarnContext(ctx, "Failed to save idempotent response",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
}

// replay answers a retry from the stored record of the first call
func replay(c *gin.Context, store *pkgredis.Client, storeKey, fingerprint string) {
	raw, err := store.Get(c.Request.Context(), storeKey).Result()
	if errors.Is(err, pkgredis.Nil) {
		// the first call failed with a 5xx between our claim and this read
		c.AbortWithStatusJSON(http.StatusConflict, response.ErrorBody("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
		return
	}
	var rec replayRecord
	if err == nil {
		err = json.Unmarshal([]byte(raw), &rec)
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.ErrorBody("IDEMPOTENCY_UNAVAILABLE", "Idempotency record could not be read"))
		return
	}

	switch {
	case rec.Fingerprint != fingerprint:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.ErrorBody("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with different request"))
	case rec.State == replayInFlight:
		c.AbortWithStatusJSON(http.StatusConflict, response.ErrorBody("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
	default:
		c.Data(rec.Status, "application/json", []byte(rec.Body))
		c.Abort()
	}
}

// routeOf names the resource a call acts on, path parameters included
func routeOf(c *gin.Context) string {
	return c.Request.Method + " " + c.Request.URL.Path
}

func idempotencyStoreKey(userID, route, key string) string {
	h := sha256.Sum256([]byte(route))
	return IdempotencyKeyPrefix + userID + ":" + hex.EncodeToString(h[:8]) + ":" + key
}

func requestFingerprint(method string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter keeps a copy of the body for replay
type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
