package reactor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
backends: [poll, select]
max_events: 64
edge_triggered: false
log_level: debug
`))
	require.NoError(t, err)

	kinds, err := cfg.BackendKinds()
	require.NoError(t, err)
	assert.Equal(t, []BackendKind{BackendPoll, BackendSelect}, kinds)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logiface.LevelDebug, level)

	opts, err := resolveOptions([]Option{WithConfig(cfg)})
	require.NoError(t, err)
	assert.Equal(t, []BackendKind{BackendPoll, BackendSelect}, opts.backends)
	assert.Equal(t, 64, opts.maxEvents)
	assert.False(t, opts.edgeTriggered)
}

func TestParseConfig_empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)

	opts, err := resolveOptions([]Option{WithConfig(cfg)})
	require.NoError(t, err)
	assert.Equal(t, defaultBackends(), opts.backends)
	assert.Equal(t, 256, opts.maxEvents)
	assert.True(t, opts.edgeTriggered)
}

func TestParseConfig_errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{"unknown field", "backendz: [poll]"},
		{"unknown backend", "backends: [iocp]"},
		{"negative max events", "max_events: -1"},
		{"unknown level", "log_level: loud"},
		{"bad yaml", "backends: ["},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backends: [select]\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"select"}, cfg.Backends)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"":        logiface.LevelWarning,
		"off":     logiface.LevelDisabled,
		"ERR":     logiface.LevelError,
		"warn":    logiface.LevelWarning,
		"info":    logiface.LevelInformational,
		" trace ": logiface.LevelTrace,
		"crit":    logiface.LevelCritical,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseBackendKind(t *testing.T) {
	for _, k := range []BackendKind{BackendEpoll, BackendKqueue, BackendPoll, BackendSelect} {
		got, err := ParseBackendKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseBackendKind("none")
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	_, err := resolveOptions([]Option{WithBackends()})
	assert.Error(t, err)
	_, err = resolveOptions([]Option{WithBackends(BackendNone)})
	assert.Error(t, err)
	_, err = resolveOptions([]Option{WithMaxEvents(0)})
	assert.Error(t, err)

	opts, err := resolveOptions([]Option{
		nil,
		WithMaxEvents(8),
		WithEdgeTriggered(false),
		WithMisuseRateLimits(nil),
		WithBackends(BackendSelect),
	})
	require.NoError(t, err)
	assert.Equal(t, 8, opts.maxEvents)
	assert.False(t, opts.edgeTriggered)
	assert.Nil(t, opts.misuseRates)
	assert.Equal(t, []BackendKind{BackendSelect}, opts.backends)

	opts, err = resolveOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, map[time.Duration]int{time.Second: 5, time.Minute: 60}, opts.misuseRates)
}
