package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	fpath := filepath.Join(t.TempDir(), "vexec.toml")
	require.NoError(t, os.WriteFile(fpath, []byte(body), 0o644))
	return fpath
}

func Test_loadConfig(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `
[joinCache]
lowWatermark = 0.25
highWatermark = 0.5

[debug]
printChunk = true
`))
	require.NoError(t, err)
	assert.Equal(t, 0.25, conf.JoinCache.LowWatermark)
	assert.Equal(t, 0.5, conf.JoinCache.HighWatermark)
	assert.True(t, conf.Debug.PrintChunk)
}

func Test_loadConfigDefaultsBadValues(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `
[joinCache]
lowWatermark = -1.0
highWatermark = 2.0
`))
	require.NoError(t, err)
	assert.Equal(t, 1.0/32, conf.JoinCache.LowWatermark)
	assert.Equal(t, 1-1.0/32, conf.JoinCache.HighWatermark)
}

// the cache must hold a flush threshold plus one sub low watermark
// batch, so the fractions may not sum past 1.
func Test_loadConfigRejectsOverlappingWatermarks(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
[joinCache]
lowWatermark = 0.5
highWatermark = 0.75
`))
	assert.Error(t, err)
}
