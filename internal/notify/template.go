package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

// Message — отрендеренное уведомление.
type Message struct {
	Subject string
	Body    string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// TemplateRegistry хранит шаблоны уведомлений по идентификатору.
// Токены подставляются через text/template: {{index . "event.title"}}.
type TemplateRegistry struct {
	templates map[string]messageTemplate
}

func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{templates: map[string]messageTemplate{}}
	for id, raw := range defaultTemplates {
		// Шаблоны по умолчанию статичны, ошибка парсинга здесь — дефект сборки.
		if err := r.Register(id, raw[0], raw[1]); err != nil {
			panic(fmt.Sprintf("notify: bad builtin template %s: %v", id, err))
		}
	}
	return r
}

var defaultTemplates = map[string][2]string{
	models.TemplateBookingConfirmed: {
		`Бронь подтверждена: {{index . "event.title"}}`,
		`Ваша запись на «{{index . "event.title"}}» {{index . "event.date"}} подтверждена. Ждем вас!`,
	},
	models.TemplateBookingWaitlisted: {
		`Вы в листе ожидания: {{index . "event.title"}}`,
		`Запись на «{{index . "event.title"}}» {{index . "event.date"}} ведется через лист ожидания. Мы сообщим, когда освободится место.`,
	},
	models.TemplateBookingPromoted: {
		`Место освободилось: {{index . "event.title"}}`,
		`Для вас освободилось место на «{{index . "event.title"}}» {{index . "event.date"}}. Бронь подтверждена.`,
	},
	models.TemplateBookingCancelled: {
		`Бронь отменена: {{index . "event.title"}}`,
		`{{with index . "subject.name"}}Бронь участника {{.}} на «{{index $ "event.title"}}» {{index $ "event.date"}} отменена.{{else}}Ваша бронь на «{{index . "event.title"}}» {{index . "event.date"}} отменена.{{end}}`,
	},
	models.TemplateReservationRequest: {
		`Для вас зарезервировано место: {{index . "event.title"}}`,
		`{{index . "reserver.name"}} зарезервировал для вас место на «{{index . "event.title"}}» {{index . "event.date"}}. Подтвердите участие, записавшись на мероприятие.`,
	},
	models.TemplateReservationRecap: {
		`Резерв оформлен: {{index . "event.title"}}`,
		`Зарезервировано мест: {{index . "reservation.count"}} на «{{index . "event.title"}}» {{index . "event.date"}}.`,
	},
}

// Register добавляет или заменяет шаблон.
func (r *TemplateRegistry) Register(id, subject, body string) error {
	subjectTpl, err := template.New(id + ":subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("%w: %s subject: %v", domain.ErrTemplate, id, err)
	}
	bodyTpl, err := template.New(id + ":body").Parse(body)
	if err != nil {
		return fmt.Errorf("%w: %s body: %v", domain.ErrTemplate, id, err)
	}
	r.templates[id] = messageTemplate{subject: subjectTpl, body: bodyTpl}
	return nil
}

// Render подставляет токены в шаблон. Неизвестный идентификатор — ErrTemplate.
func (r *TemplateRegistry) Render(id string, tokens map[string]string) (Message, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: unknown template %s", domain.ErrTemplate, id)
	}
	if tokens == nil {
		tokens = map[string]string{}
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, tokens); err != nil {
		return Message{}, fmt.Errorf("%w: %s subject: %v", domain.ErrTemplate, id, err)
	}
	if err := tpl.body.Execute(&body, tokens); err != nil {
		return Message{}, fmt.Errorf("%w: %s body: %v", domain.ErrTemplate, id, err)
	}
	return Message{Subject: subject.String(), Body: body.String()}, nil
}
