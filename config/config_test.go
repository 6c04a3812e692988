package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecNamedConstants(t *testing.T) {
	cfg := Default()
	require.Equal(t, 7, cfg.ElderCount)
	require.Equal(t, 4, cfg.ReplicationFactor)
	require.Equal(t, 10*time.Minute, cfg.DysfunctionRetention.Duration)
	require.Equal(t, 500.0, cfg.DysfunctionZScore)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.ElderCount = 9
	cfg.BootstrapContacts = []string{"127.0.0.1:9000", "127.0.0.1:9001"}

	path := filepath.Join(t.TempDir(), "novanet.toml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadMissingFileFalls(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
