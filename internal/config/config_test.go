package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
sink:
  today:
    pickup: https://sheets.example/today/pick
    dropoff: https://sheets.example/today/drop
  tomorrow:
    pickup: https://sheets.example/tomorrow/pick
    dropoff: https://sheets.example/tomorrow/drop
  row_delay: 250ms
`))
	require.NoError(t, err)

	assert.Equal(t, "Pick", cfg.Manifest.PickupKeyword)
	assert.Equal(t, "Drop", cfg.Manifest.DropoffKeyword)
	assert.Equal(t, "Res.", cfg.Manifest.ValidationColumn)
	assert.Equal(t, 3, cfg.Manifest.HeaderRow)
	assert.Equal(t, 30*time.Second, cfg.Sink.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Sink.RowDelay)
	assert.Equal(t, "manifest:runs", cfg.Redis.RunQueue)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())

	assert.Equal(t, "https://sheets.example/today/pick", cfg.Destinations(false).Pickup)
	assert.Equal(t, "https://sheets.example/tomorrow/drop", cfg.Destinations(true).Dropoff)
}

func TestParse_OverridesLocationCodes(t *testing.T) {
	cfg, err := Parse([]byte("manifest:\n  location_codes: [PER, DRW]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"PER", "DRW"}, cfg.Manifest.LocationCodes)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty keyword", "manifest:\n  pickup_keyword: \"\"\n", "keywords"},
		{"header row", "manifest:\n  header_row: 0\n", "header_row"},
		{"negative delay", "sink:\n  row_delay: -1s\n", "row_delay"},
		{"zero timeout", "sink:\n  timeout: 0s\n", "timeout"},
		{"not yaml", "sink: [", "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UsesConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDatabaseDSN(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  enabled: true\n  user: relay\n  password: secret\n  host: db\n"))
	require.NoError(t, err)
	assert.Equal(t, "relay:secret@tcp(db:3306)/manifest_relay?charset=utf8mb4&parseTime=true&loc=UTC", cfg.DatabaseDSN())

	_, err = Parse([]byte("database:\n  enabled: true\n  name: \"\"\n"))
	assert.ErrorContains(t, err, "database.name")
}
