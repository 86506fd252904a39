package requestid

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewIdIsUnique(t *testing.T) {
	require := require.New(t)
	a := NewId()
	b := NewId()
	require.NotEmpty(a)
	require.NotEqual(a, b)
	require.NotContains(a, "=")
}

func TestWithRequestIdReusesExistingId(t *testing.T) {
	require := require.New(t)
	ctx, id := WithRequestId(context.Background())
	require.Equal(id, GetRequestId(ctx))

	ctx2, id2 := WithRequestId(ctx)
	require.Equal(id, id2)
	require.Equal(ctx, ctx2)
}

func TestAddsRequestIdToLogEntries(t *testing.T) {
	require := require.New(t)

	buf := bytes.Buffer{}
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	ctx, id := WithRequestId(ctx)
	zerolog.Ctx(ctx).Info().Msg("hello")

	loggedMap := make(map[string]string)
	require.Nil(json.Unmarshal(buf.Bytes(), &loggedMap))
	require.Equal(id, loggedMap["requestId"])
}
