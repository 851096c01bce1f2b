package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggerLevels(t *testing.T) {
	log, err := InitLogger(Options{Level: "debug"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(-1))

	log, err = InitLogger(Options{})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(-1))

	_, err = InitLogger(Options{Level: "loud"})
	require.Error(t, err)
}

func TestInitLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")
	log, err := InitLogger(Options{File: path})
	require.NoError(t, err)
	log.Info("hello")
	require.FileExists(t, path)
}
