package logx

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require.NotNil(t, New())
	require.NotNil(t, NewNop())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"dbg", LevelDebug},
		{"  debug  ", LevelDebug},
		{"info", LevelInfo},
		{"inf", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"Warning", LevelWarn},
		{"err", LevelError},
		{"ERROR", LevelError},
		{"garbage", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestLogger_Tags(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	logger.Debug("probing runtime", "program", "java")
	logger.Info("component installed", "component", "pylsp")
	logger.Warn("strategy failed", "strategy", "apt")
	logger.Err(errors.New("exit status 100"), "command", "apt-get update")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "DBG probing runtime")
	assert.Contains(t, lines[0], "java")
	assert.Contains(t, lines[1], "INF component installed")
	assert.Contains(t, lines[2], "WRN strategy failed")
	assert.Contains(t, lines[3], "ERR exit status 100")
	assert.Contains(t, lines[3], "apt-get update")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	scoped := logger.With("component", "jdtls")
	scoped.Info("downloading archive")
	logger.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "jdtls")
	assert.NotContains(t, lines[1], "jdtls", "parent logger must not inherit scope")
}

func TestLogger_ErrNil(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, LevelDebug).Err(nil, "source", "runner")
	assert.Empty(t, buf.String())
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  []string
		skip  []string
	}{
		{"debug", LevelDebug, []string{"DBG", "INF", "WRN", "ERR"}, nil},
		{"info", LevelInfo, []string{"INF", "WRN", "ERR"}, []string{"DBG"}},
		{"warn", LevelWarn, []string{"WRN", "ERR"}, []string{"DBG", "INF"}},
		{"error", LevelError, []string{"ERR"}, []string{"DBG", "INF", "WRN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, tt.level)

			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Err(errors.New("error"))

			out := buf.String()
			for _, tag := range tt.want {
				assert.Contains(t, out, tag)
			}
			for _, tag := range tt.skip {
				assert.NotContains(t, out, tag)
			}
		})
	}
}

func TestLogger_SetLevelPropagates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)
	child := logger.With("component", "phpactor")

	child.Debug("hidden")
	logger.SetLevel(LevelDebug)
	child.Debug("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("concurrent log", "id", id, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 500)
}

func TestNew_WithEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, parseLevel(os.Getenv(EnvLevel)))
	logger.Debug("from env")

	assert.Contains(t, buf.String(), "from env")
}
