package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"roombook/internal/config"
	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadResources(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()
	cfg := &config.Config{Resources: []models.Resource{{ID: "conf-a", Name: "Conference A", Capacity: 8, BaseHourlyRate: 50}}}

	t.Run("missing file keeps config resources", func(t *testing.T) {
		t.Setenv("RESOURCES_PATH", filepath.Join(dir, "absent.yaml"))
		got, err := LoadResources(cfg, &logger)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "conf-a", got[0].ID)
	})

	t.Run("file is merged", func(t *testing.T) {
		t.Setenv("RESOURCES_PATH", writeFile(t, dir, "ok.yaml", `
resources:
  - id: board-room
    name: Board Room
    capacity: 10
    base_hourly_rate: 60
    add_ons:
      - id: catering
        name: Catering
        pricing_type: flat
        price: 50
`))
		got, err := LoadResources(cfg, &logger)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "board-room", got[1].ID)
		require.Len(t, got[1].AddOns, 1)
		assert.Equal(t, models.AddOnFlat, got[1].AddOns[0].PricingType)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		t.Setenv("RESOURCES_PATH", writeFile(t, dir, "dup.yaml", `
resources:
  - id: conf-a
    name: Again
    capacity: 4
    base_hourly_rate: 10
`))
		_, err := LoadResources(cfg, &logger)
		assert.ErrorContains(t, err, "duplicate resource ID")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv("RESOURCES_PATH", writeFile(t, dir, "bad.yaml", "resources: [\n"))
		_, err := LoadResources(cfg, &logger)
		assert.ErrorContains(t, err, "parse resources")
	})
}

func TestBuild_SQLiteWithoutRedis(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RESOURCES_PATH", filepath.Join(dir, "none.yaml"))
	cfgPath := writeFile(t, dir, "config.yaml", `
database:
  driver: sqlite
  path: `+filepath.Join(dir, "roombook.db")+`
exports:
  path: `+filepath.Join(dir, "exports")+`
backup:
  enabled: true
  storage_path: `+filepath.Join(dir, "backups")+`
resources:
  - id: conf-a
    name: Conference A
    capacity: 8
    base_hourly_rate: 50
`)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	a, err := Build(context.Background(), cfg, &logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.SQLite)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Telegram)
	require.NotNil(t, a.Service)
	require.NotNil(t, a.Reconciler)
	require.NotNil(t, a.Scheduler)
	require.NotNil(t, a.Report)

	res, err := a.Service.GetResource(context.Background(), "conf-a")
	require.NoError(t, err)
	assert.Equal(t, "Conference A", res.Name)
	require.NoError(t, a.Store.Ping(context.Background()))
}
