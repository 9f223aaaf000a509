package notify

import (
	"context"
	"time"

	"sobytnik/internal/models"

	"github.com/google/uuid"
)

// Task — единица доставки в очереди уведомлений. Несет снимок адресата,
// чтобы воркер не ходил в справочник пользователей.
type Task struct {
	ID         string            `json:"id"`
	UserID     int64             `json:"user_id"`
	Email      string            `json:"email,omitempty"`
	TelegramID int64             `json:"telegram_id,omitempty"`
	TemplateID string            `json:"template_id"`
	Tokens     map[string]string `json:"tokens,omitempty"`
	Channel    string            `json:"channel"`
	RetryCount int               `json:"retry_count"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Recipient восстанавливает пользователя из снимка задачи.
func (t Task) Recipient() *models.User {
	return &models.User{ID: t.UserID, Email: t.Email, TelegramID: t.TelegramID}
}

// Enqueuer принимает задачи на асинхронную доставку.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// QueueNotifier откладывает доставку в очередь вместо немедленной отправки.
// Реализует domain.Notifier.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (q *QueueNotifier) Send(ctx context.Context, user *models.User, templateID string, tokens map[string]string, channel string) error {
	task := Task{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Email:      user.Email,
		TelegramID: user.TelegramID,
		TemplateID: templateID,
		Tokens:     tokens,
		Channel:    channel,
		CreatedAt:  time.Now().UTC(),
	}
	return q.queue.Enqueue(ctx, task)
}
