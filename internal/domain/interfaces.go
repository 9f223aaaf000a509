package domain

import (
	"context"

	"sobytnik/internal/models"
)

// Tx — единица работы. Close безопасно вызывать после Commit; закрытие
// без коммита откатывает все изменения и снимает блокировки.
type Tx interface {
	Commit() error
	Close() error
}

// TxManager открывает транзакции хранилища.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// BookingStore — хранилище броней. Все мутации выполняются внутри транзакции;
// LockEvent должен удерживать эксклюзивную блокировку мероприятия до конца транзакции.
type BookingStore interface {
	LockEvent(ctx context.Context, tx Tx, eventID int64) error
	FindBooking(ctx context.Context, eventID, userID int64) (*models.Booking, error)
	FindBookingsByEvent(ctx context.Context, eventID int64) ([]*models.Booking, error)
	FindBookingsByEventAndStatus(ctx context.Context, eventID int64, status models.BookingStatus) ([]*models.Booking, error)
	StatusCounts(ctx context.Context, eventID int64, includeDeletedUsers bool) (models.StatusCounts, error)
	CreateBooking(ctx context.Context, tx Tx, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, tx Tx, eventID, userID int64, reservedBy *int64, status models.BookingStatus, additionalInfo map[string]string) (*models.Booking, error)
}

// EventStore отдает параметры мероприятий.
type EventStore interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
}

// UserDirectory — справочник пользователей (внешняя система профилей).
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// GroupDirectory отвечает на вопросы о владении группой, связанной с мероприятием.
type GroupDirectory interface {
	IsGroupManager(ctx context.Context, groupToken string, userID int64) (bool, error)
}

// Notifier доставляет шаблонное уведомление пользователю. Ошибки доставки
// после коммита брони логируются вызывающей стороной и не пробрасываются.
type Notifier interface {
	Send(ctx context.Context, user *models.User, templateID string, tokens map[string]string, channel string) error
}

// EventPublisher — внутрипроцессная шина доменных событий.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
