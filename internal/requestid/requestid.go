package requestid

import (
	"context"
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Key to use when setting the request ID.
type ctxKeyRequestID int

const requestIDKey ctxKeyRequestID = 0

// Header is the HTTP header that carries the request id to the scheduler.
const Header = "X-Request-Id"

// NewId returns a short, lowercase, URL-safe identifier derived from a random UUID.
func NewId() string {
	id := uuid.New()
	return strings.ToLower(strings.TrimRight(base32.StdEncoding.EncodeToString(id[:]), "="))
}

// Attaches a new ID to the context and adds it as a field to the context logger.
// An ID already present on the context is reused.
func WithRequestId(ctx context.Context) (context.Context, string) {
	if id := GetRequestId(ctx); id != "" {
		return ctx, id
	}

	id := NewId()
	ctx = context.WithValue(ctx, requestIDKey, id)

	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() != zerolog.Disabled {
		l := logger.With().Str("requestId", id).Logger()
		ctx = l.WithContext(ctx)
	}
	return ctx, id
}

// Gets the ID for the current request or empty if there is none.
func GetRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
