package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRollback(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 5, Status: models.EventOpen})
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.LockEvent(ctx, tx, 1))

	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{
		EventID: 1, UserID: 10, Status: models.StatusConfirmed,
	}))
	_, err = store.UpdateBookingStatus(ctx, tx, 1, 10, nil, models.StatusCancelled, nil)
	require.NoError(t, err)

	// Закрытие без коммита — все изменения пропадают
	require.NoError(t, tx.Close())

	booking, err := store.FindBooking(ctx, 1, 10)
	require.NoError(t, err)
	assert.Nil(t, booking)
}

func TestMemoryStoreCommit(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 5, Status: models.EventOpen})
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.LockEvent(ctx, tx, 1))
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{
		EventID: 1, UserID: 10, Status: models.StatusConfirmed,
	}))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Close())

	booking, err := store.FindBooking(ctx, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
}

func TestMemoryStoreLockSerializesEvent(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 5, Status: models.EventOpen})
	ctx := context.Background()

	tx1, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.LockEvent(ctx, tx1, 1))

	acquired := make(chan struct{})
	go func() {
		tx2, err := store.Begin(ctx)
		assert.NoError(t, err)
		assert.NoError(t, store.LockEvent(ctx, tx2, 1))
		close(acquired)
		assert.NoError(t, tx2.Close())
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired the event lock while the first held it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, tx1.Close())

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the event lock")
	}
}

func TestMemoryStoreLockUnknownEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Close()

	assert.ErrorIs(t, store.LockEvent(ctx, tx, 404), domain.ErrEventNotFound)
}

func TestMemoryStoreStatusCounts(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 5, Status: models.EventOpen})
	store.AddUser(&models.User{ID: 1, Role: models.RoleStudent})
	store.AddUser(&models.User{ID: 2, Role: models.RoleTeacher})
	store.AddUser(&models.User{ID: 3, Role: models.RoleStudent, Deleted: true})
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{EventID: 1, UserID: 1, Status: models.StatusConfirmed}))
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{EventID: 1, UserID: 2, Status: models.StatusConfirmed}))
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{EventID: 1, UserID: 3, Status: models.StatusConfirmed}))
	require.NoError(t, tx.Commit())

	counts, err := store.StatusCounts(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Count(models.StatusConfirmed, models.RoleStudent))
	assert.Equal(t, int64(1), counts.Count(models.StatusConfirmed, models.RoleTeacher))

	counts, err = store.StatusCounts(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Count(models.StatusConfirmed, models.RoleStudent))
}

func TestMemoryStoreOrdering(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 1, Status: models.EventOpen})
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{EventID: 1, UserID: 2, Status: models.StatusWaitingList, BookingDate: base.Add(time.Minute)}))
	require.NoError(t, store.CreateBooking(ctx, tx, &models.Booking{EventID: 1, UserID: 1, Status: models.StatusWaitingList, BookingDate: base}))
	require.NoError(t, tx.Commit())

	waiting, err := store.FindBookingsByEventAndStatus(ctx, 1, models.StatusWaitingList)
	require.NoError(t, err)
	require.Len(t, waiting, 2)
	assert.Equal(t, int64(1), waiting[0].UserID)
	assert.Equal(t, int64(2), waiting[1].UserID)
}

func TestMemoryStoreConcurrentTransactions(t *testing.T) {
	store := NewMemoryStore()
	store.AddEvent(&models.Event{ID: 1, NumberOfPlaces: 1, Status: models.EventOpen})
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(userID int64) {
			defer wg.Done()
			tx, err := store.Begin(ctx)
			if err != nil {
				return
			}
			defer tx.Close()
			if err := store.LockEvent(ctx, tx, 1); err != nil {
				return
			}
			if err := store.CreateBooking(ctx, tx, &models.Booking{
				EventID: 1, UserID: userID, Status: models.StatusConfirmed,
			}); err != nil {
				return
			}
			_ = tx.Commit()
		}(int64(i + 1))
	}
	wg.Wait()

	bookings, err := store.FindBookingsByEvent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, bookings, goroutines)
}
