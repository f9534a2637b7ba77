package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	idempotencyTTL         = 24 * time.Hour
	idempotencyInFlightTTL = 30 * time.Second
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseStore keeps finished responses and the in-flight markers.
type responseStore interface {
	// Load returns nil without error when nothing is stored under key.
	Load(ctx context.Context, key string) (*cachedResponse, error)
	Save(ctx context.Context, key string, response *cachedResponse) error
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

// redisResponseStore is the Redis-backed responseStore.
type redisResponseStore struct {
	client redis.UniversalClient
}

func (s *redisResponseStore) Load(ctx context.Context, key string) (*cachedResponse, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (s *redisResponseStore) Save(ctx context.Context, key string, response *cachedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, idempotencyTTL).Err()
}

func (s *redisResponseStore) Acquire(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, key, "1", idempotencyInFlightTTL).Result()
}

func (s *redisResponseStore) Release(ctx context.Context, key string) {
	s.client.Del(ctx, key)
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response of a mutating request
// that repeats an Idempotency-Key. Keys are scoped to caller and route. A
// duplicate arriving while the first request is still running gets 409.
// Server errors are not stored so the client can retry them.
func IdempotencyMiddleware(client redis.UniversalClient, log logrus.FieldLogger) gin.HandlerFunc {
	return idempotency(&redisResponseStore{client: client}, log)
}

func idempotency(store responseStore, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scope := c.GetHeader(UserIDHeader) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		cacheKey := "idempotency:" + scope
		inFlightKey := "idempotency:inflight:" + scope

		cached, err := store.Load(ctx, cacheKey)
		if err != nil {
			log.WithError(err).Warn("idempotency lookup failed, processing without it")
			c.Next()
			return
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		acquired, err := store.Acquire(ctx, inFlightKey)
		if err != nil {
			log.WithError(err).Warn("idempotency lock failed, processing without it")
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is in progress"})
			return
		}
		defer store.Release(context.Background(), inFlightKey)

		// The first request may have stored its response and released the
		// marker between the lookup above and Acquire.
		cached, err = store.Load(ctx, cacheKey)
		if err != nil {
			log.WithError(err).Warn("idempotency lookup failed, processing without it")
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := store.Save(ctx, cacheKey, &response); err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		}
	}
}

// replay writes a stored response and stops the chain.
func replay(c *gin.Context, cached *cachedResponse) {
	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
