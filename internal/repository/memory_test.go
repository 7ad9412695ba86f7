package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository("bookings")

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	bookings := sampleBookings()
	require.NoError(t, repo.Save(ctx, bookings))

	bookings[0].CustomerName = "changed after save"

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBookings(), got)

	raw, ok := repo.values.Load("bookings")
	require.True(t, ok)
	assert.Contains(t, string(raw.([]byte)), `"customerName":"Jane Doe"`)
}
