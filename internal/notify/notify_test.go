package notify

import (
	"context"
	"testing"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	to      string
	subject string
	body    string
}

func (m *recordingMailer) SendMail(ctx context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return nil
}

type recordingTelegram struct {
	chatID int64
	text   string
}

func (t *recordingTelegram) SendText(chatID int64, text string) error {
	t.chatID, t.text = chatID, text
	return nil
}

func TestTemplateRegistry_Render(t *testing.T) {
	registry := NewTemplateRegistry()

	msg, err := registry.Render(models.TemplateBookingConfirmed, map[string]string{
		"event.title": "Открытая тренировка",
		"event.date":  "2026-09-01 18:00",
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "Открытая тренировка")
	assert.Contains(t, msg.Body, "2026-09-01 18:00")
}

func TestTemplateRegistry_UnknownTemplate(t *testing.T) {
	registry := NewTemplateRegistry()

	_, err := registry.Render("no_such_template", nil)
	assert.ErrorIs(t, err, domain.ErrTemplate)
}

func TestTemplateRegistry_CancelledVariants(t *testing.T) {
	registry := NewTemplateRegistry()
	tokens := map[string]string{"event.title": "Семинар", "event.date": "2026-09-01 18:00"}

	own, err := registry.Render(models.TemplateBookingCancelled, tokens)
	require.NoError(t, err)
	assert.Contains(t, own.Body, "Ваша бронь")

	tokens["subject.name"] = "Петя Сидоров"
	reserved, err := registry.Render(models.TemplateBookingCancelled, tokens)
	require.NoError(t, err)
	assert.Contains(t, reserved.Body, "Петя Сидоров")
}

func TestNotifier_EmailChannel(t *testing.T) {
	mailer := &recordingMailer{}
	logger := zerolog.Nop()
	n := NewNotifier(nil, mailer, nil, &logger)
	user := &models.User{ID: 1, Email: "user@example.com"}

	err := n.Send(context.Background(), user, models.TemplateBookingConfirmed,
		map[string]string{"event.title": "Лекция", "event.date": "2026-09-01 18:00"}, models.ChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", mailer.to)
	assert.Contains(t, mailer.subject, "Лекция")
}

func TestNotifier_TelegramChannel(t *testing.T) {
	tg := &recordingTelegram{}
	logger := zerolog.Nop()
	n := NewNotifier(nil, nil, tg, &logger)
	user := &models.User{ID: 1, TelegramID: 42}

	err := n.Send(context.Background(), user, models.TemplateBookingConfirmed,
		map[string]string{"event.title": "Лекция", "event.date": "2026-09-01 18:00"}, models.ChannelTelegram)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tg.chatID)
	assert.Contains(t, tg.text, "Лекция")
}

func TestNotifier_ChannelErrors(t *testing.T) {
	logger := zerolog.Nop()
	n := NewNotifier(nil, &recordingMailer{}, &recordingTelegram{}, &logger)
	tokens := map[string]string{"event.title": "Лекция", "event.date": "2026-09-01 18:00"}

	err := n.Send(context.Background(), &models.User{ID: 1}, models.TemplateBookingConfirmed, tokens, models.ChannelEmail)
	assert.Error(t, err, "missing email address")

	err = n.Send(context.Background(), &models.User{ID: 1}, models.TemplateBookingConfirmed, tokens, models.ChannelTelegram)
	assert.Error(t, err, "missing telegram chat")

	err = n.Send(context.Background(), &models.User{ID: 1, Email: "a@b.c"}, models.TemplateBookingConfirmed, tokens, "pigeon")
	assert.Error(t, err, "unknown channel")
}

type recordingQueue struct {
	tasks []Task
}

func (q *recordingQueue) Enqueue(ctx context.Context, task Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func TestQueueNotifier(t *testing.T) {
	queue := &recordingQueue{}
	n := NewQueueNotifier(queue)
	user := &models.User{ID: 7, Email: "user@example.com", TelegramID: 42}

	err := n.Send(context.Background(), user, models.TemplateBookingPromoted,
		map[string]string{"event.title": "Лекция"}, models.ChannelEmail)
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)

	task := queue.tasks[0]
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, int64(7), task.UserID)
	assert.Equal(t, models.TemplateBookingPromoted, task.TemplateID)
	assert.Equal(t, models.ChannelEmail, task.Channel)

	recipient := task.Recipient()
	assert.Equal(t, "user@example.com", recipient.Email)
	assert.Equal(t, int64(42), recipient.TelegramID)
}
