package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigDerivesDataAndLogDirsFromTheSameRoot(t *testing.T) {
	cfg := defaultConfig()

	require.Equal(t, defaultLogLevel, cfg.DebugLevel)
	require.Equal(t, defaultMaxLogFiles, cfg.MaxLogFiles)
	require.Equal(t, defaultMaxLogFileSize, cfg.MaxLogFileSize)
	require.Equal(t, filepath.Dir(cfg.DataDir), filepath.Dir(cfg.LogDir))
}

func TestIdentityAndLogFilePathsAreUnderDataAndLogDirs(t *testing.T) {
	cfg := defaultConfig()
	cfg.DataDir = "/tmp/creditnode-data"
	cfg.LogDir = "/tmp/creditnode-logs"

	require.Equal(t, "/tmp/creditnode-data/identity.key", cfg.identityFilePath())
	require.Equal(t, "/tmp/creditnode-logs/creditnode.log", cfg.logFilePath())
}
