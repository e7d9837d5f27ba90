package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	assert := assert.New(t)

	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "debug.log")

	closer, err := Setup(Options{Level: "debug", File: path, JSON: true})
	require.NoError(t, err)

	log.Debug().Str("task", "PROJ_1").Msg("hello")
	log.Trace().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(1, len(lines))
	assert.Contains(lines[0], `"task":"PROJ_1"`)
	assert.Contains(lines[0], `"message":"hello"`)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(Options{Level: "chatty"})
	assert.NotNil(t, err)
}
