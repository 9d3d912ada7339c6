package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/topolab/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3080, cfg.Server.Port)
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "topolab", "images", "IOS"), cfg.Images["IOS"])
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "topolab.yaml", `
server:
  host: 0.0.0.0
  port: 8080
projects_path: /srv/projects
images:
  IOS: /srv/images/IOS
computes:
  - compute_id: vm1
    protocol: https
    host: 10.0.0.5
    port: 3080
    user: admin
    password: secret
store:
  kind: redis
  redis_addr: 127.0.0.1:6379
log_level: debug
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Server.Local, "unset keys keep their default")
	assert.Equal(t, "/srv/projects", cfg.ProjectsPath)
	require.Len(t, cfg.Computes, 1)
	conn := cfg.Computes[0].Connection()
	assert.Equal(t, "https://10.0.0.5:3080/v2/compute", conn.BaseURL())
	assert.Equal(t, "secret", conn.Password)
	assert.Equal(t, "debug", cfg.LogLevel)

	dir, ok := cfg.Images.Dir("IOS")
	assert.True(t, ok)
	assert.Equal(t, "/srv/images/IOS", dir)
	_, ok = cfg.Images.Dir("DOCKER")
	assert.False(t, ok)
}

func TestLoad_JSON(t *testing.T) {
	path := write(t, "topolab.json", `{"server":{"port":4000},"store":{"kind":"badger","badger_path":"/var/lib/topolab"}}`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/topolab", cfg.Store.BadgerPath)
}

func TestLoad_ValidationNamesTheKey(t *testing.T) {
	cases := map[string]string{
		"store.kind":             "store: {kind: etcd}",
		"store.redis_addr":       "store: {kind: redis}",
		"store.file_path":        "store: {kind: file}",
		"server.port":            "server: {port: 70000}",
		"computes[0].compute_id": "computes: [{host: a}]",
		"computes[1].compute_id": "computes: [{compute_id: a, host: a}, {compute_id: a, host: b}]",
		"computes[0].protocol":   "computes: [{compute_id: a, host: a, protocol: ftp}]",
	}
	for key, content := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := config.Load(write(t, "bad.yaml", content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := config.Load(write(t, "bad.yaml", "server: [unterminated"))
	assert.Error(t, err)
}
