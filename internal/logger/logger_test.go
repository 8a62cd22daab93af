package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestJSONFormatAndLevel(t *testing.T) {
	is := is.New(t)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	Logger{Level: "warn", Format: "json"}.SetupWriter(&buf)

	log.Info().Msg("hidden")
	log.Warn().Str("map", "yard").Msg("shown")

	var line map[string]any
	is.NoErr(json.Unmarshal(buf.Bytes(), &line))
	is.Equal(line["message"], "shown")
	is.Equal(line["map"], "yard")
	is.Equal(line["level"], "warn")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	is := is.New(t)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	Logger{Level: "loud", Format: "json"}.SetupWriter(&buf)

	is.Equal(zerolog.GlobalLevel(), zerolog.InfoLevel)
}
