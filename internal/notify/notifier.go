package notify

import (
	"context"
	"fmt"

	"sobytnik/internal/models"

	"github.com/rs/zerolog"
)

// Mailer доставляет письмо на адрес получателя.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// TelegramClient доставляет сообщение в чат Telegram.
type TelegramClient interface {
	SendText(chatID int64, text string) error
}

// Notifier рендерит шаблон и доставляет сообщение по запрошенному каналу.
// Реализует domain.Notifier.
type Notifier struct {
	registry *TemplateRegistry
	mailer   Mailer
	telegram TelegramClient
	logger   *zerolog.Logger
}

func NewNotifier(registry *TemplateRegistry, mailer Mailer, telegram TelegramClient, logger *zerolog.Logger) *Notifier {
	if registry == nil {
		registry = NewTemplateRegistry()
	}
	return &Notifier{registry: registry, mailer: mailer, telegram: telegram, logger: logger}
}

func (n *Notifier) Send(ctx context.Context, user *models.User, templateID string, tokens map[string]string, channel string) error {
	msg, err := n.registry.Render(templateID, tokens)
	if err != nil {
		return err
	}

	switch channel {
	case models.ChannelTelegram:
		if n.telegram == nil {
			return fmt.Errorf("telegram channel is not configured")
		}
		if user.TelegramID == 0 {
			return fmt.Errorf("user %d has no telegram chat", user.ID)
		}
		if err := n.telegram.SendText(user.TelegramID, msg.Subject+"\n\n"+msg.Body); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	case models.ChannelEmail:
		if n.mailer == nil {
			return fmt.Errorf("email channel is not configured")
		}
		if user.Email == "" {
			return fmt.Errorf("user %d has no email", user.ID)
		}
		if err := n.mailer.SendMail(ctx, user.Email, msg.Subject, msg.Body); err != nil {
			return fmt.Errorf("email send: %w", err)
		}
	default:
		return fmt.Errorf("unknown notification channel: %s", channel)
	}

	n.logger.Debug().Int64("user_id", user.ID).Str("template", templateID).Str("channel", channel).
		Msg("notification delivered")
	return nil
}
