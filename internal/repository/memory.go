// Package repository содержит встраиваемую реализацию хранилища броней в
// памяти. Она удовлетворяет тому же контракту, что и SQLite-хранилище:
// блокировка мероприятия на время транзакции и откат при закрытии без
// коммита.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

type bookingKey struct {
	eventID int64
	userID  int64
}

type MemoryStore struct {
	mu         sync.Mutex
	events     map[int64]models.Event
	users      map[int64]models.User
	bookings   map[bookingKey]models.Booking
	eventLocks map[int64]*sync.Mutex
	nextID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[int64]models.Event),
		users:      make(map[int64]models.User),
		bookings:   make(map[bookingKey]models.Booking),
		eventLocks: make(map[int64]*sync.Mutex),
	}
}

// memTx журналирует обратные операции: Close без Commit прогоняет журнал
// в обратном порядке и снимает блокировки мероприятий.
type memTx struct {
	store     *MemoryStore
	locked    []int64
	journal   []func()
	committed bool
	closed    bool
}

func (t *memTx) Commit() error {
	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	t.journal = nil
	t.committed = true
	t.release()
	return nil
}

func (t *memTx) Close() error {
	if t.closed || t.committed {
		t.closed = true
		return nil
	}
	t.closed = true

	t.store.mu.Lock()
	for i := len(t.journal) - 1; i >= 0; i-- {
		t.journal[i]()
	}
	t.journal = nil
	t.store.mu.Unlock()

	t.release()
	return nil
}

func (t *memTx) release() {
	t.store.mu.Lock()
	locks := make([]*sync.Mutex, 0, len(t.locked))
	for _, eventID := range t.locked {
		locks = append(locks, t.store.eventLocks[eventID])
	}
	t.store.mu.Unlock()

	for _, lock := range locks {
		lock.Unlock()
	}
	t.locked = nil
}

func (s *MemoryStore) Begin(ctx context.Context) (domain.Tx, error) {
	return &memTx{store: s}, nil
}

func (s *MemoryStore) tx(tx domain.Tx) (*memTx, error) {
	wrapped, ok := tx.(*memTx)
	if !ok || wrapped.store != s {
		return nil, fmt.Errorf("transaction does not belong to this store")
	}
	if wrapped.closed || wrapped.committed {
		return nil, fmt.Errorf("transaction is closed")
	}
	return wrapped, nil
}

// LockEvent блокирует мероприятие до конца транзакции. Конкурирующая
// транзакция ждет на мьютексе мероприятия.
func (s *MemoryStore) LockEvent(ctx context.Context, tx domain.Tx, eventID int64) error {
	mtx, err := s.tx(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.events[eventID]; !ok {
		s.mu.Unlock()
		return domain.ErrEventNotFound
	}
	lock, ok := s.eventLocks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.eventLocks[eventID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	mtx.locked = append(mtx.locked, eventID)
	return nil
}

func (s *MemoryStore) FindBooking(ctx context.Context, eventID, userID int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingKey{eventID, userID}]
	if !ok {
		return nil, nil
	}
	copied := booking
	return &copied, nil
}

func (s *MemoryStore) FindBookingsByEvent(ctx context.Context, eventID int64) ([]*models.Booking, error) {
	return s.collect(eventID, func(b models.Booking) bool { return true })
}

func (s *MemoryStore) FindBookingsByEventAndStatus(ctx context.Context, eventID int64, status models.BookingStatus) ([]*models.Booking, error) {
	return s.collect(eventID, func(b models.Booking) bool { return b.Status == status })
}

func (s *MemoryStore) collect(eventID int64, keep func(models.Booking) bool) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bookings []*models.Booking
	for key, booking := range s.bookings {
		if key.eventID != eventID || !keep(booking) {
			continue
		}
		copied := booking
		bookings = append(bookings, &copied)
	}

	// Старые брони первыми: порядок обязателен для продвижения из листа ожидания.
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].BookingDate.Equal(bookings[j].BookingDate) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].BookingDate.Before(bookings[j].BookingDate)
	})
	return bookings, nil
}

func (s *MemoryStore) StatusCounts(ctx context.Context, eventID int64, includeDeletedUsers bool) (models.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := models.StatusCounts{}
	for key, booking := range s.bookings {
		if key.eventID != eventID {
			continue
		}
		role := models.RoleStudent
		if user, ok := s.users[key.userID]; ok {
			if user.Deleted && !includeDeletedUsers {
				continue
			}
			role = user.Role
		}
		counts.Add(booking.Status, role, 1)
	}
	return counts, nil
}

func (s *MemoryStore) CreateBooking(ctx context.Context, tx domain.Tx, booking *models.Booking) error {
	mtx, err := s.tx(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bookingKey{booking.EventID, booking.UserID}
	if _, exists := s.bookings[key]; exists {
		return fmt.Errorf("booking already exists for event %d user %d", booking.EventID, booking.UserID)
	}

	now := time.Now().UTC()
	if booking.BookingDate.IsZero() {
		booking.BookingDate = now
	}
	booking.Updated = now
	s.nextID++
	booking.ID = s.nextID

	s.bookings[key] = *booking
	mtx.journal = append(mtx.journal, func() {
		delete(s.bookings, key)
	})
	return nil
}

func (s *MemoryStore) UpdateBookingStatus(ctx context.Context, tx domain.Tx, eventID, userID int64, reservedBy *int64, status models.BookingStatus, additionalInfo map[string]string) (*models.Booking, error) {
	mtx, err := s.tx(tx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bookingKey{eventID, userID}
	previous, ok := s.bookings[key]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	updated := previous
	updated.Status = status
	updated.ReservedBy = reservedBy
	updated.Updated = time.Now().UTC()
	if additionalInfo != nil {
		updated.AdditionalInfo = additionalInfo
	}

	s.bookings[key] = updated
	mtx.journal = append(mtx.journal, func() {
		s.bookings[key] = previous
	})

	copied := updated
	return &copied, nil
}

// AddEvent / AddUser наполняют хранилище; GetEvent / GetUser реализуют
// domain.EventStore и domain.UserDirectory.

func (s *MemoryStore) AddEvent(event *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = *event
}

func (s *MemoryStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	copied := event
	return &copied, nil
}

func (s *MemoryStore) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := user
	return &copied, nil
}
