package repository

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"File", config.Config{Storage: config.StorageConfig{Driver: config.StorageFile, Key: "bookings", FilePath: filepath.Join(dir, "bookings.json")}}},
		{"SQLite", config.Config{Storage: config.StorageConfig{Driver: config.StorageSQLite, Key: "bookings"}, Database: config.DatabaseConfig{Path: filepath.Join(dir, "bookings.db")}}},
		{"Redis", config.Config{Storage: config.StorageConfig{Driver: config.StorageRedis, Key: "bookings"}, Redis: config.RedisConfig{Address: s.Addr()}}},
		{"Memory", config.Config{Storage: config.StorageConfig{Driver: config.StorageMemory, Key: "bookings"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, closer, err := Open(ctx, &tt.cfg, &logger)
			require.NoError(t, err)
			defer closer.Close()

			require.NoError(t, p.Save(ctx, sampleBookings()))
			got, err := p.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleBookings(), got)
		})
	}
}

func TestOpen_Failover(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cfg := config.Config{Storage: config.StorageConfig{
		Driver:   config.StorageFile,
		Key:      "bookings",
		FilePath: filepath.Join(t.TempDir(), "bookings.json"),
		Failover: true,
	}}

	p, closer, err := Open(context.Background(), &cfg, &logger)
	require.NoError(t, err)
	defer closer.Close()
	assert.IsType(t, &FailoverRepository{}, p)
}

func TestOpen_RedisDown(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	s, err := miniredis.Run()
	require.NoError(t, err)
	addr := s.Addr()
	s.Close()

	cfg := config.Config{Storage: config.StorageConfig{Driver: config.StorageRedis, Key: "bookings"}, Redis: config.RedisConfig{Address: addr}}
	_, _, err = Open(ctx, &cfg, &logger)
	assert.Error(t, err)

	cfg.Storage.Failover = true
	p, closer, err := Open(ctx, &cfg, &logger)
	require.NoError(t, err)
	defer closer.Close()

	// nothing was read from redis, so the load reports the outage
	_, err = p.Load(ctx)
	assert.Error(t, err)

	// served from memory while redis is unreachable, without touching redis
	require.ErrorIs(t, p.Save(ctx, sampleBookings()), ErrPrimaryNotLoaded)
	got, err := p.(*FailoverRepository).fallback.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBookings(), got)
}

func TestOpen_UnknownDriver(t *testing.T) {
	logger := zerolog.New(io.Discard)
	cfg := config.Config{Storage: config.StorageConfig{Driver: "tape"}}
	_, _, err := Open(context.Background(), &cfg, &logger)
	assert.Error(t, err)
}
