package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestJsonFormat(t *testing.T) {
	require := require.New(t)
	defer restore(zerolog.GlobalLevel(), log.Logger)

	buf := &bytes.Buffer{}
	Configure(buf, zerolog.InfoLevel, Json)

	log.Info().Str("jobId", "j1").Msg("Job submitted")
	log.Debug().Msg("hidden")

	entry := map[string]interface{}{}
	require.Nil(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal("Job submitted", entry["message"])
	require.Equal("j1", entry["jobId"])
	require.Equal("info", entry["level"])
}

func TestUnspecifiedFormatIsPlainWhenNotATerminal(t *testing.T) {
	require := require.New(t)
	defer restore(zerolog.GlobalLevel(), log.Logger)

	buf := &bytes.Buffer{}
	Configure(buf, zerolog.WarnLevel, Unspecified)

	log.Warn().Msg("Unexpected state transition")
	require.Contains(buf.String(), "WRN")
	require.Contains(buf.String(), "Unexpected state transition")
	require.NotContains(buf.String(), "\x1b[")
}

func restore(level zerolog.Level, logger zerolog.Logger) {
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
}
