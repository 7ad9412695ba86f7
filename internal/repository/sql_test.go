package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLRepository(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "bookings.db")

	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)

	repo := NewSQLRepository(db, "bookings")

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Save(ctx, sampleBookings()))
	require.NoError(t, db.Close())

	reopened, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, err = NewSQLRepository(reopened, "bookings").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBookings(), got)

	other, err := NewSQLRepository(reopened, "other").Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, other)
}
