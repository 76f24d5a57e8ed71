package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/nightly/internal/nightly"
)

func fullEnv() map[string]string {
	return map[string]string{
		"SUPABASE_DEV_URL":      "https://auth.example",
		"SUPABASE_DEV_KEY":      "anon",
		"SUPABASE_DEV_USER":     "bot@example.com",
		"SUPABASE_DEV_PASSWORD": "secret",
		"MODELZ_BASIC_URL":      "https://api.example",
		"MODELZ_CLUSTER_ID":     "cluster-1",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Environ: fullEnv()})
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example", cfg.Supabase.URL)
	assert.Equal(t, "bot@example.com", cfg.Supabase.User)
	assert.Equal(t, "cluster-1", cfg.Modelz.ClusterID)
	assert.Equal(t, nightly.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.WindowDays)
	assert.Equal(t, BackendFile, cfg.HistoryBackend)
	assert.Equal(t, "data/result.json", cfg.HistoryPath)
	assert.Equal(t, "README.md", cfg.ReportOutput)
	assert.Empty(t, cfg.TemplatesFile)
}

func TestLoadOverrides(t *testing.T) {
	vars := fullEnv()
	vars["NIGHTLY_TIME_LIMIT"] = "90s"
	vars["NIGHTLY_TRY_INTERVAL"] = "2s"
	vars["NIGHTLY_STATUS_RETRIES"] = "0"
	vars["NIGHTLY_HISTORY_BACKEND"] = "sqlite"
	vars["NIGHTLY_WINDOW_DAYS"] = "7"

	cfg, err := Load(LoadOptions{Environ: vars})
	require.NoError(t, err)
	p := cfg.Policy()
	assert.Equal(t, 90*time.Second, p.TimeLimit)
	assert.Equal(t, 2*time.Second, p.TryInterval)
	assert.Zero(t, p.StatusRetries)
	assert.Equal(t, BackendSQLite, cfg.HistoryBackend)
	assert.Equal(t, 7, cfg.WindowDays)
}

func TestLoadMissingListsEveryKey(t *testing.T) {
	vars := fullEnv()
	delete(vars, "SUPABASE_DEV_PASSWORD")
	delete(vars, "MODELZ_CLUSTER_ID")

	_, err := Load(LoadOptions{Environ: vars})
	require.Error(t, err)
	require.True(t, IsMissingError(err))
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"SUPABASE_DEV_PASSWORD", "MODELZ_CLUSTER_ID"}, missing.Keys)
	assert.Contains(t, err.Error(), "SUPABASE_DEV_PASSWORD, MODELZ_CLUSTER_ID")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"zero interval":   {"NIGHTLY_TRY_INTERVAL": "0s"},
		"limit too short": {"NIGHTLY_TIME_LIMIT": "500ms"},
		"sub-millisecond": {"NIGHTLY_TRY_INTERVAL": "1500us"},
		"zero endpoint":   {"NIGHTLY_ENDPOINT_TIMEOUT": "0s"},
		"endpoint short":  {"NIGHTLY_ENDPOINT_TIMEOUT": "500ms"},
		"negative retry":  {"NIGHTLY_STATUS_RETRIES": "-1"},
		"zero window":     {"NIGHTLY_WINDOW_DAYS": "0"},
		"bad backend":     {"NIGHTLY_HISTORY_BACKEND": "postgres"},
		"bad duration":    {"NIGHTLY_SETTLE_DELAY": "soon"},
	}
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			vars := fullEnv()
			for k, v := range extra {
				vars[k] = v
			}
			_, err := Load(LoadOptions{Environ: vars})
			require.Error(t, err)
			assert.False(t, IsMissingError(err))
		})
	}
}

func TestLoadAcceptsFractionalSecondInterval(t *testing.T) {
	vars := fullEnv()
	vars["NIGHTLY_TRY_INTERVAL"] = "500ms"
	vars["NIGHTLY_ENDPOINT_TIMEOUT"] = "500ms"

	cfg, err := Load(LoadOptions{Environ: vars})
	require.NoError(t, err)
	p := cfg.Policy()
	assert.Equal(t, 500*time.Millisecond, p.TryInterval)
	assert.Equal(t, 500*time.Millisecond, p.EndpointTimeout)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "SUPABASE_DEV_URL=https://file.example\nSUPABASE_DEV_PASSWORD=from-file\nNIGHTLY_WINDOW_DAYS=3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	vars := fullEnv()
	delete(vars, "SUPABASE_DEV_PASSWORD")
	cfg, err := Load(LoadOptions{EnvFile: path, Environ: vars})
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example", cfg.Supabase.URL, "environment wins over the file")
	assert.Equal(t, "from-file", cfg.Supabase.Password)
	assert.Equal(t, 3, cfg.WindowDays)
}

func TestLoadMissingEnvFileIgnored(t *testing.T) {
	cfg, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env"), Environ: fullEnv()})
	require.NoError(t, err)
	assert.Equal(t, "anon", cfg.Supabase.Key)
}

func TestLoadOfflineSkipsCredentials(t *testing.T) {
	cfg, err := LoadOffline(LoadOptions{Environ: map[string]string{"NIGHTLY_HISTORY_PATH": "state.db", "NIGHTLY_HISTORY_BACKEND": "sqlite"}})
	require.NoError(t, err)
	assert.Equal(t, "state.db", cfg.HistoryPath)
	assert.Empty(t, cfg.Supabase.URL)

	_, err = LoadOffline(LoadOptions{Environ: map[string]string{"NIGHTLY_HISTORY_BACKEND": "csv"}})
	require.Error(t, err)
}
