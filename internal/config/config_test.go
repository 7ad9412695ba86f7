package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("VENUE_BOOKINGS_FILE", filepath.Join(tmpDir, "bookings.json"))

	yamlContent := `
app:
  name: "lounge"
storage:
  driver: file
  file_path: "${VENUE_BOOKINGS_FILE}"
api:
  enabled: true
  auth:
    enabled: true
    api_keys:
      - key: "k1"
        name: "door"
        permissions: ["scan"]
mirror:
  base_delay: 500ms
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "lounge", cfg.App.Name)
	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(tmpDir, "bookings.json"), cfg.Storage.FilePath)
	assert.Equal(t, models.DefaultStoreKey, cfg.Storage.Key)
	assert.True(t, cfg.API.HTTP.Enabled)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, []string{"scan"}, cfg.API.Auth.APIKeys[0].Permissions)
	assert.Equal(t, 500*time.Millisecond, cfg.Mirror.BaseDelay)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: floppy\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "file driver",
			cfg:     Config{Storage: StorageConfig{Driver: StorageFile, FilePath: "b.json", Key: "bookings"}},
			wantErr: false,
		},
		{
			name:    "file driver without path",
			cfg:     Config{Storage: StorageConfig{Driver: StorageFile, Key: "bookings"}},
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			cfg:     Config{Storage: StorageConfig{Driver: StorageSQLite, Key: "bookings"}},
			wantErr: true,
		},
		{
			name: "postgres",
			cfg: Config{
				Storage:  StorageConfig{Driver: StoragePostgres, Key: "bookings"},
				Database: DatabaseConfig{Postgres: PostgresConfig{Host: "db", DBName: "venue"}},
			},
			wantErr: false,
		},
		{
			name:    "redis without address",
			cfg:     Config{Storage: StorageConfig{Driver: StorageRedis, Key: "bookings"}},
			wantErr: true,
		},
		{
			name:    "empty key",
			cfg:     Config{Storage: StorageConfig{Driver: StorageMemory}},
			wantErr: true,
		},
		{
			name: "broker without url",
			cfg: Config{
				Storage: StorageConfig{Driver: StorageMemory, Key: "bookings"},
				Broker:  BrokerConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "duplicate api key",
			cfg: Config{
				Storage: StorageConfig{Driver: StorageMemory, Key: "bookings"},
				API: APIConfig{Auth: APIAuthConfig{APIKeys: []APIClientKey{
					{Key: "a", Name: "one"},
					{Key: "a", Name: "two"},
				}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, "data/bookings.json", cfg.Storage.FilePath)
	assert.Equal(t, models.DefaultStoreKey, cfg.Storage.Key)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "Bookings", cfg.Google.BookingsSheetName)
	assert.Equal(t, 5, cfg.Mirror.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "venue", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=venue sslmode=disable", p.DSN())
}

func TestGoogleEnabled(t *testing.T) {
	assert.False(t, GoogleConfig{}.Enabled())
	assert.True(t, GoogleConfig{GoogleCredentialsFile: "c.json", BookingSpreadSheetID: "id"}.Enabled())
}
