package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/events"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/payload"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/repository"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) Enqueue(ctx context.Context, snapshot []models.Reservation) error {
	return m.Called(ctx, snapshot).Error(0)
}

type failingPersister struct {
	repository.MemoryRepository
}

func (p *failingPersister) Save(context.Context, []models.Reservation) error {
	return errors.New("storage full")
}

// cancelOnInsert removes every record right after storing it, as a
// concurrent cancel would.
type cancelOnInsert struct {
	*store.BookingStore
}

func (c cancelOnInsert) Insert(ctx context.Context, rec models.Reservation) error {
	if err := c.BookingStore.Insert(ctx, rec); err != nil {
		return err
	}
	return c.BookingStore.Delete(ctx, rec)
}

const janePayload = `{"n":"Jane Doe","d":"2024-06-01","t":"19:30","g":"4"}`

func setup(t *testing.T) (*ScanService, *events.EventBus, *mockMirror) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	st, err := store.New(context.Background(), repository.NewMemoryRepository("bookings"), &logger)
	require.NoError(t, err)

	bus := events.NewEventBus()
	mirror := new(mockMirror)
	return NewScanService(st, bus, mirror, &logger), bus, mirror
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	svc, bus, mirror := setup(t)

	var created []events.BookingEventPayload
	bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		var p events.BookingEventPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		created = append(created, p)
		return nil
	})
	mirror.On("Enqueue", ctx, mock.MatchedBy(func(s []models.Reservation) bool { return len(s) == 1 })).Return(nil).Once()

	res, err := svc.Scan(ctx, janePayload)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Booking.CustomerName)
	assert.Equal(t, models.TableUnassigned, res.Booking.Table)
	assert.Equal(t, models.NoticeSuccess, res.Notice.Level)
	assert.Contains(t, res.Notice.Message, "Jane Doe")

	require.Len(t, created, 1)
	assert.Equal(t, SourceScan, created[0].Source)
	assert.Equal(t, 1, created[0].Total)
	mirror.AssertExpectations(t)

	t.Run("QueryFormIsSameBooking", func(t *testing.T) {
		_, err := svc.Scan(ctx, "n=Jane+Doe&d=2024-06-01&t=19:30&g=4")
		assert.ErrorIs(t, err, store.ErrDuplicateBooking)
		assert.Len(t, svc.ListByDate("2024-06-01"), 1)
		assert.Len(t, created, 1)
	})

	t.Run("DecodeError", func(t *testing.T) {
		var rejected []events.ScanRejectedPayload
		bus.Subscribe(events.EventScanRejected, func(e *events.Event) error {
			var p events.ScanRejectedPayload
			require.NoError(t, json.Unmarshal(e.Payload, &p))
			rejected = append(rejected, p)
			return nil
		})

		_, err := svc.Scan(ctx, `{"n":"Jane Doe","d":"2024-06-01","t":"19:30","g":"0"}`)
		assert.ErrorIs(t, err, payload.ErrInvalidGuestCount)
		require.Len(t, rejected, 1)
		assert.Equal(t, "InvalidGuestCount", rejected[0].Kind)
		assert.Equal(t, "guests", rejected[0].Field)
	})
}

func TestBook_ResultDoesNotDependOnLaterReads(t *testing.T) {
	logger := zerolog.Nop()
	st, err := store.New(context.Background(), repository.NewMemoryRepository("bookings"), &logger)
	require.NoError(t, err)
	svc := NewScanService(cancelOnInsert{st}, nil, nil, &logger)

	res, err := svc.Book(context.Background(), models.Reservation{CustomerName: " Jane Doe ", Date: "2024-06-01", Time: "9:30", Guests: 2}, SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Booking.CustomerName)
	assert.Equal(t, "09:30", res.Booking.Time)
	assert.Equal(t, models.TableUnassigned, res.Booking.Table)
	assert.Contains(t, res.Notice.Message, "Jane Doe")
	assert.Equal(t, 0, st.Len())
}

func TestPreview(t *testing.T) {
	svc, _, mirror := setup(t)

	rec, err := svc.Preview(janePayload)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Guests)
	assert.Empty(t, svc.ListByDate("2024-06-01"))
	mirror.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)

	_, err = svc.Preview("garbage")
	assert.ErrorIs(t, err, payload.ErrUnparseableFormat)
}

func TestBookAndCancel(t *testing.T) {
	ctx := context.Background()
	svc, bus, mirror := setup(t)
	mirror.On("Enqueue", ctx, mock.Anything).Return(nil)

	var deleted int
	bus.Subscribe(events.EventBookingDeleted, func(*events.Event) error { deleted++; return nil })

	rec := models.Reservation{CustomerName: "Ana", Date: "2024-06-02", Time: "9:00", Guests: 2}
	res, err := svc.Book(ctx, rec, SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, "09:00", res.Booking.Time)

	got, ok := svc.FindCustomer("Ana")
	require.True(t, ok)
	assert.Equal(t, res.Booking, got)
	assert.Len(t, svc.ListRange("2024-06-01", "2024-06-30"), 1)

	notice, err := svc.Cancel(ctx, rec, SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeSuccess, notice.Level)
	assert.Equal(t, 1, deleted)

	notice, err = svc.Cancel(ctx, rec, SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeInfo, notice.Level)
	assert.Equal(t, 1, deleted)

	_, ok = svc.FindCustomer("Ana")
	assert.False(t, ok)
}

func TestPersistenceWarningNotice(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	st, err := store.New(ctx, &failingPersister{}, &logger)
	require.NoError(t, err)

	svc := NewScanService(st, nil, nil, &logger)
	res, err := svc.Scan(ctx, janePayload)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeWarning, res.Notice.Level)
	assert.Contains(t, res.Notice.Message, "could not be saved")
	assert.Len(t, svc.ListByDate("2024-06-01"), 1)

	notice, err := svc.Cancel(ctx, res.Booking, SourceScan)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeWarning, notice.Level)
}

func TestMirrorErrorDoesNotFail(t *testing.T) {
	ctx := context.Background()
	svc, _, mirror := setup(t)
	mirror.On("Enqueue", ctx, mock.Anything).Return(errors.New("queue full"))

	_, err := svc.Scan(ctx, janePayload)
	assert.NoError(t, err)
}

func TestEncode(t *testing.T) {
	svc, _, _ := setup(t)

	out, err := svc.Encode(models.Reservation{CustomerName: "Jane Doe", Date: "2024-06-01", Time: "19:30", Guests: 4})
	require.NoError(t, err)
	fromJSON, err := payload.Decode(out.JSON)
	require.NoError(t, err)
	fromQuery, err := payload.Decode(out.Query)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromQuery)
	assert.Equal(t, "Jane Doe", fromQuery.CustomerName)
	assert.Len(t, fromQuery.Table, models.ReservationCodeLength)

	withTable, err := svc.Encode(models.Reservation{CustomerName: "Jane Doe", Date: "2024-06-01", Time: "19:30", Guests: 4, Table: "T7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":"Jane Doe","d":"2024-06-01","t":"19:30","g":4,"c":"T7"}`, withTable.JSON)

	_, err = svc.Encode(models.Reservation{CustomerName: "Jane Doe", Date: "2024-06-01", Time: "25:00", Guests: 4})
	assert.ErrorIs(t, err, payload.ErrInvalidTime)
}

func TestNoticeFor(t *testing.T) {
	_, err := payload.Decode("nope")
	assert.Equal(t, "Invalid QR code format.", NoticeFor(err).Message)
	assert.Equal(t, models.NoticeError, NoticeFor(store.ErrDuplicateBooking).Level)
	assert.Contains(t, NoticeFor(errors.New("x")).Message, "try again")
}

func TestResultLabel(t *testing.T) {
	_, decodeErr := payload.Decode("n=Jane&d=2024-06-01&t=25:00")
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "duplicate", resultLabel(store.ErrDuplicateBooking))
	assert.Equal(t, "unpersisted", resultLabel(&store.PersistenceWarning{Op: "insert", Err: errors.New("x")}))
	assert.Equal(t, "InvalidTime", resultLabel(decodeErr))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
}
