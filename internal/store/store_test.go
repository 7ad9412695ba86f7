package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/payload"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) Load(ctx context.Context) ([]models.Reservation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockPersister) Save(ctx context.Context, bookings []models.Reservation) error {
	args := m.Called(ctx, bookings)
	return args.Error(0)
}

func booking(name, date, tm string) models.Reservation {
	return models.Reservation{
		CustomerName: name,
		Date:         date,
		Time:         tm,
		Guests:       2,
		Table:        models.TableUnassigned,
		Occasion:     models.OccasionNone,
	}
}

func newStore(t *testing.T) (*BookingStore, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository(models.DefaultStoreKey)
	logger := zerolog.Nop()
	s, err := New(context.Background(), repo, &logger)
	require.NoError(t, err)
	return s, repo
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	s, repo := newStore(t)

	rec := booking("Jane Doe", "2024-06-01", "19:30")
	require.NoError(t, s.Insert(ctx, rec))
	assert.Equal(t, 1, s.Len())

	saved, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Reservation{rec}, saved)

	t.Run("Duplicate", func(t *testing.T) {
		dup := rec
		dup.Guests = 8
		dup.Email = "other@example.com"
		err := s.Insert(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicateBooking)
		assert.Equal(t, 1, s.Len())

		got, ok := s.FindByCustomer("Jane Doe")
		require.True(t, ok)
		assert.Equal(t, 2, got.Guests)
	})

	t.Run("DuplicateAfterNormalization", func(t *testing.T) {
		err := s.Insert(ctx, booking(" Jane Doe ", "2024-06-01", "19:30"))
		assert.ErrorIs(t, err, ErrDuplicateBooking)
	})

	t.Run("SameNameDifferentTime", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, booking("Jane Doe", "2024-06-01", "20:30")))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("Invalid", func(t *testing.T) {
		bad := booking("Jane Doe", "2024-6-1", "19:30")
		err := s.Insert(ctx, bad)
		assert.ErrorIs(t, err, payload.ErrInvalidDate)

		zero := booking("Jane Doe", "2024-06-03", "19:30")
		zero.Guests = 0
		assert.ErrorIs(t, s.Insert(ctx, zero), payload.ErrInvalidGuestCount)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("AppliesDefaults", func(t *testing.T) {
		rec := models.Reservation{CustomerName: "Bo", Date: "2024-06-05", Time: "8:00", Guests: 1}
		require.NoError(t, s.Insert(ctx, rec))

		got, ok := s.FindByCustomer("Bo")
		require.True(t, ok)
		assert.Equal(t, "08:00", got.Time)
		assert.Equal(t, models.TableUnassigned, got.Table)
		assert.Equal(t, models.OccasionNone, got.Occasion)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesMatching", func(t *testing.T) {
		s, repo := newStore(t)
		a := booking("Jane Doe", "2024-06-01", "19:30")
		b := booking("Ana", "2024-06-01", "20:00")
		require.NoError(t, s.Insert(ctx, a))
		require.NoError(t, s.Insert(ctx, b))

		require.NoError(t, s.Delete(ctx, models.Reservation{CustomerName: "Jane Doe", Date: "2024-06-01", Time: "19:30"}))
		assert.Equal(t, []models.Reservation{b}, s.All())

		saved, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.Reservation{b}, saved)
	})

	t.Run("NoMatchDoesNotPersist", func(t *testing.T) {
		p := new(mockPersister)
		p.On("Load", ctx).Return(nil, nil).Once()
		logger := zerolog.Nop()
		s, err := New(ctx, p, &logger)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, booking("Nobody", "2024-06-01", "19:30")))
		p.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("DeleteThenReinsert", func(t *testing.T) {
		s, _ := newStore(t)
		rec := booking("Jane Doe", "2024-06-01", "19:30")
		require.NoError(t, s.Insert(ctx, rec))
		require.NoError(t, s.Delete(ctx, rec))
		require.NoError(t, s.Insert(ctx, rec))
		assert.Equal(t, 1, s.Len())
	})
}

func TestFindByDate(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	empty := s.FindByDate("2024-06-01")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := booking("A", "2024-06-01", "19:00")
	other := booking("B", "2024-06-02", "19:00")
	second := booking("C", "2024-06-01", "18:00")
	for _, r := range []models.Reservation{first, other, second} {
		require.NoError(t, s.Insert(ctx, r))
	}

	assert.Equal(t, []models.Reservation{first, second}, s.FindByDate("2024-06-01"))
	assert.Empty(t, s.FindByDate("2024-6-1"))
	assert.Empty(t, s.FindByDate(" 2024-06-01"))

	got := s.FindByDate("2024-06-01")
	got[0].CustomerName = "mutated"
	assert.Equal(t, "A", s.FindByDate("2024-06-01")[0].CustomerName)
}

func TestFindByCustomer(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, ok := s.FindByCustomer("Jane Doe")
	assert.False(t, ok)

	early := booking("Jane Doe", "2024-06-01", "19:30")
	later := booking("Jane Doe", "2024-05-01", "12:00")
	require.NoError(t, s.Insert(ctx, early))
	require.NoError(t, s.Insert(ctx, later))

	got, ok := s.FindByCustomer("Jane Doe")
	require.True(t, ok)
	assert.Equal(t, early, got)

	_, ok = s.FindByCustomer("jane doe")
	assert.False(t, ok)
}

func TestFindByRange(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	for _, d := range []string{"2024-06-03", "2024-06-01", "2024-06-05", "2024-07-01"} {
		require.NoError(t, s.Insert(ctx, booking("X", d, "19:00")))
	}

	dates := func(rs []models.Reservation) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Date)
		}
		return out
	}

	assert.Equal(t, []string{"2024-06-03", "2024-06-01", "2024-06-05"}, dates(s.FindByRange("2024-06-01", "2024-06-05")))
	assert.Equal(t, []string{"2024-06-05", "2024-07-01"}, dates(s.FindByRange("2024-06-04", "")))
	assert.Len(t, s.FindByRange("", ""), 4)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("RoundTrip", func(t *testing.T) {
		repo := repository.NewMemoryRepository(models.DefaultStoreKey)
		s, err := New(ctx, repo, &logger)
		require.NoError(t, err)

		recs := []models.Reservation{
			booking("A", "2024-06-01", "19:00"),
			booking("B", "2024-06-01", "20:00"),
		}
		for _, r := range recs {
			require.NoError(t, s.Insert(ctx, r))
		}

		restored, err := New(ctx, repo, &logger)
		require.NoError(t, err)
		assert.Equal(t, recs, restored.All())
		assert.Equal(t, recs, restored.FindByDate("2024-06-01"))
	})

	t.Run("InvalidUTF8KeepsIdentity", func(t *testing.T) {
		const scan = "n=%FFJane&d=2024-06-01&t=19:30"
		repo := repository.NewMemoryRepository(models.DefaultStoreKey)
		s, err := New(ctx, repo, &logger)
		require.NoError(t, err)

		rec, err := payload.Decode(scan)
		require.NoError(t, err)
		require.NoError(t, s.Insert(ctx, rec))

		restored, err := New(ctx, repo, &logger)
		require.NoError(t, err)
		again, err := payload.Decode(scan)
		require.NoError(t, err)
		assert.ErrorIs(t, restored.Insert(ctx, again), ErrDuplicateBooking)
		assert.Equal(t, 1, restored.Len())

		// records built in code take the same path
		assert.ErrorIs(t, restored.Insert(ctx, booking("\xffJane", "2024-06-01", "19:30")), ErrDuplicateBooking)
	})

	t.Run("SkipsInvalidAndDuplicate", func(t *testing.T) {
		p := new(mockPersister)
		good := booking("A", "2024-06-01", "19:00")
		bad := booking("", "2024-06-01", "19:00")
		p.On("Load", ctx).Return([]models.Reservation{good, bad, good}, nil).Once()

		s, err := New(ctx, p, &logger)
		require.NoError(t, err)
		assert.Equal(t, []models.Reservation{good}, s.All())
	})

	t.Run("FailoverPrimaryUnreadable", func(t *testing.T) {
		primary := new(mockPersister)
		primary.On("Load", ctx).Return(nil, errors.New("redis down")).Once()
		repo := repository.NewFailoverRepository(primary, repository.NewMemoryRepository(models.DefaultStoreKey), &logger)

		s, err := New(ctx, repo, &logger)
		require.NotNil(t, s)
		assert.True(t, IsWarning(err))
		assert.ErrorContains(t, err, "redis down")

		err = s.Insert(ctx, booking("D", "2024-06-03", "18:00"))
		assert.True(t, IsWarning(err))
		assert.ErrorIs(t, err, repository.ErrPrimaryNotLoaded)
		assert.Equal(t, 1, s.Len())
		primary.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("ReadFailure", func(t *testing.T) {
		p := new(mockPersister)
		p.On("Load", ctx).Return(nil, errors.New("disk on fire")).Once()

		s, err := New(ctx, p, &logger)
		require.NotNil(t, s)
		assert.True(t, IsWarning(err))
		assert.ErrorContains(t, err, "disk on fire")
		assert.Equal(t, 0, s.Len())
	})
}

func TestPersistenceWarning(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	p := new(mockPersister)
	p.On("Load", ctx).Return(nil, nil).Once()
	saveErr := errors.New("quota exceeded")
	p.On("Save", ctx, mock.Anything).Return(saveErr)

	s, err := New(ctx, p, &logger)
	require.NoError(t, err)

	rec := booking("Jane Doe", "2024-06-01", "19:30")
	err = s.Insert(ctx, rec)
	require.Error(t, err)
	assert.True(t, IsWarning(err))
	assert.ErrorIs(t, err, saveErr)

	var w *PersistenceWarning
	require.ErrorAs(t, err, &w)
	assert.Equal(t, "insert", w.Op)

	// the in-memory mutation is kept
	assert.Equal(t, 1, s.Len())
	assert.ErrorIs(t, s.Insert(ctx, rec), ErrDuplicateBooking)

	err = s.Delete(ctx, rec)
	assert.True(t, IsWarning(err))
	assert.Equal(t, 0, s.Len())

	assert.False(t, IsWarning(ErrDuplicateBooking))
	assert.False(t, IsWarning(nil))
}

func TestConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	s, repo := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every name is inserted twice; only one of each may win
			rec := booking(fmt.Sprintf("guest-%d", i%20), "2024-06-01", "19:00")
			_ = s.Insert(ctx, rec)
			_ = s.FindByDate("2024-06-01")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
	saved, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 20)
}
