package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sobytnik/internal/capacity"
	"sobytnik/internal/domain"
	"sobytnik/internal/events"
	"sobytnik/internal/metrics"
	"sobytnik/internal/models"

	"github.com/rs/zerolog"
)

// BookingService — конечный автомат бронирования: проверяет запрос, берет
// блокировку мероприятия, считает места и выполняет переходы статусов.
// Любая мутация проходит по схеме: транзакция → LockEvent → снимок счетчиков
// → запись → коммит; уведомления отправляются строго после коммита.
type BookingService struct {
	store             domain.BookingStore
	txm               domain.TxManager
	users             domain.UserDirectory
	groups            domain.GroupDirectory
	notifier          domain.Notifier
	eventBus          domain.EventPublisher
	channel           string
	defaultGroupLimit int64
	logger            *zerolog.Logger
	now               func() time.Time
}

func NewBookingService(
	store domain.BookingStore,
	txm domain.TxManager,
	users domain.UserDirectory,
	groups domain.GroupDirectory,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	channel string,
	defaultGroupLimit int64,
	logger *zerolog.Logger,
) *BookingService {
	if channel == "" {
		channel = models.ChannelEmail
	}
	return &BookingService{
		store:             store,
		txm:               txm,
		users:             users,
		groups:            groups,
		notifier:          notifier,
		eventBus:          eventBus,
		channel:           channel,
		defaultGroupLimit: defaultGroupLimit,
		logger:            logger,
		now:               time.Now,
	}
}

// RequestBooking записывает пользователя на мероприятие.
//
// Существующая RESERVED-бронь подтверждается без повторной проверки мест:
// место было учтено при создании резерва. Повторная запись после отмены
// обновляет прежнюю строку, сохраняя идентичность брони.
func (s *BookingService) RequestBooking(ctx context.Context, event *models.Event, user *models.User, additionalInfo map[string]string) (*models.Booking, error) {
	if !user.EmailVerified {
		metrics.IncBooking("rejected")
		return nil, domain.ErrEmailNotVerified
	}
	if event.Status == models.EventCancelled {
		metrics.IncBooking("rejected")
		return nil, domain.ErrEventCancelled
	}
	if event.DeadlinePassed(s.now()) {
		metrics.IncBooking("rejected")
		return nil, domain.ErrDeadlinePassed
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Close() }()

	if err := s.store.LockEvent(ctx, tx, event.ID); err != nil {
		return nil, err
	}

	existing, err := s.store.FindBooking(ctx, event.ID, user.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case models.StatusReserved:
			return s.confirmReservation(ctx, tx, event, user, existing, additionalInfo)
		case models.StatusConfirmed, models.StatusWaitingList, models.StatusAttended, models.StatusAbsent:
			metrics.IncBooking("rejected")
			return nil, domain.ErrAlreadyBooked
		}
		// CANCELLED: строка будет переиспользована ниже.
	}

	status := models.StatusConfirmed
	if event.Status == models.EventWaitingListOnly {
		status = models.StatusWaitingList
	} else if event.Targets(user.Role) {
		counts, err := s.store.StatusCounts(ctx, event.ID, false)
		if err != nil {
			return nil, err
		}
		if capacity.PlacesAvailable(event, counts) <= 0 {
			metrics.IncBooking("full")
			return nil, domain.ErrEventFull
		}
	}

	var booking *models.Booking
	if existing != nil {
		booking, err = s.store.UpdateBookingStatus(ctx, tx, event.ID, user.ID, nil, status, additionalInfo)
	} else {
		booking = &models.Booking{
			EventID:        event.ID,
			UserID:         user.ID,
			Status:         status,
			BookingDate:    s.now().UTC(),
			AdditionalInfo: additionalInfo,
		}
		err = s.store.CreateBooking(ctx, tx, booking)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if status == models.StatusWaitingList {
		metrics.IncBooking("waitlisted")
		s.publishEvent(events.EventBookingWaitlisted, booking)
		s.notify(ctx, user, models.TemplateBookingWaitlisted, s.eventTokens(event))
	} else {
		metrics.IncBooking("confirmed")
		s.publishEvent(events.EventBookingConfirmed, booking)
		s.notify(ctx, user, models.TemplateBookingConfirmed, s.eventTokens(event))
	}

	return booking, nil
}

// confirmReservation — самоподтверждение резерва внутри уже открытой
// транзакции RequestBooking.
func (s *BookingService) confirmReservation(ctx context.Context, tx domain.Tx, event *models.Event, user *models.User, existing *models.Booking, additionalInfo map[string]string) (*models.Booking, error) {
	booking, err := s.store.UpdateBookingStatus(ctx, tx, event.ID, user.ID, existing.ReservedBy, models.StatusConfirmed, additionalInfo)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.IncBooking("confirmed")
	s.publishEvent(events.EventBookingConfirmed, booking)
	s.notify(ctx, user, models.TemplateBookingConfirmed, s.eventTokens(event))
	return booking, nil
}

// PromoteToConfirmedBooking переводит WAITING_LIST или RESERVED бронь в
// CONFIRMED. Места перепроверяются под блокировкой: их могла занять
// конкурирующая запись с момента постановки продвижения в очередь.
func (s *BookingService) PromoteToConfirmedBooking(ctx context.Context, event *models.Event, userID int64) (*models.Booking, error) {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Close() }()

	if err := s.store.LockEvent(ctx, tx, event.ID); err != nil {
		return nil, err
	}

	booking, err := s.store.FindBooking(ctx, event.ID, userID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	if booking.Status != models.StatusWaitingList && booking.Status != models.StatusReserved {
		return nil, domain.ErrNotPromotable
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Резерв уже удерживает место, его подтверждение занятых мест не меняет.
	if booking.Status == models.StatusWaitingList && event.Targets(user.Role) {
		counts, err := s.store.StatusCounts(ctx, event.ID, false)
		if err != nil {
			return nil, err
		}
		if capacity.PromotionHeadroom(event, counts) < 1 {
			return nil, domain.ErrEventFull
		}
	}

	updated, err := s.store.UpdateBookingStatus(ctx, tx, event.ID, userID, booking.ReservedBy, models.StatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.IncPromotion()
	s.publishEvent(events.EventBookingPromoted, updated)
	s.notify(ctx, user, models.TemplateBookingPromoted, s.eventTokens(event))
	return updated, nil
}

// CancelBooking отменяет активную бронь пользователя и после коммита
// продвигает самую раннюю запись листа ожидания, если она есть.
func (s *BookingService) CancelBooking(ctx context.Context, event *models.Event, userID int64) error {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Close() }()

	if err := s.store.LockEvent(ctx, tx, event.ID); err != nil {
		return err
	}

	booking, err := s.store.FindBooking(ctx, event.ID, userID)
	if err != nil {
		return err
	}
	if booking == nil || !booking.IsActive() {
		return domain.ErrBookingNotFound
	}

	wasReserved := booking.Status == models.StatusReserved
	reserver := booking.ReservedBy

	cancelled, err := s.store.UpdateBookingStatus(ctx, tx, event.ID, userID, nil, models.StatusCancelled, nil)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.IncCancellation()
	s.publishEvent(events.EventBookingCancelled, cancelled)

	// Отмена уже закоммичена: ошибки уведомлений и продвижения логируются,
	// но вызывающая сторона получает успех.
	s.notifyCancellation(ctx, event, userID, wasReserved, reserver)
	s.promoteOldestWaiting(ctx, event)
	return nil
}

func (s *BookingService) notifyCancellation(ctx context.Context, event *models.Event, userID int64, wasReserved bool, reserver *int64) {
	subject, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logNotifyFailure(err, userID, models.TemplateBookingCancelled)
		return
	}

	tokens := s.eventTokens(event)
	if wasReserved && reserver != nil {
		// Для резерва уведомляется создавший его пользователь, с именем
		// того, чья бронь отменена.
		tokens["subject.name"] = subject.DisplayName()
		s.notifyByID(ctx, *reserver, models.TemplateBookingCancelled, tokens)
		return
	}
	s.notify(ctx, subject, models.TemplateBookingCancelled, tokens)
}

// promoteOldestWaiting выполняет продвижение после отмены в отдельной
// короткой транзакции со свежей блокировкой мероприятия.
func (s *BookingService) promoteOldestWaiting(ctx context.Context, event *models.Event) {
	waiting, err := s.store.FindBookingsByEventAndStatus(ctx, event.ID, models.StatusWaitingList)
	if err != nil {
		s.logger.Error().Err(err).Int64("event_id", event.ID).Msg("waiting list fetch error")
		return
	}
	if len(waiting) == 0 {
		return
	}

	oldest := waiting[0]
	if _, err := s.PromoteToConfirmedBooking(ctx, event, oldest.UserID); err != nil {
		if errors.Is(err, domain.ErrEventFull) {
			s.logger.Debug().Int64("event_id", event.ID).Int64("user_id", oldest.UserID).
				Msg("no capacity for waiting list promotion")
			return
		}
		s.logger.Error().Err(err).Int64("event_id", event.ID).Int64("user_id", oldest.UserID).
			Msg("waiting list promotion error")
	}
}

// RequestReservations создает партию RESERVED-броней от имени резервирующего.
// Партия атомарна: при нехватке мест или превышении лимита не создается ничего.
func (s *BookingService) RequestReservations(ctx context.Context, event *models.Event, students []*models.User, reserver *models.User) ([]*models.Booking, error) {
	if !event.AllowGroupReservation {
		metrics.IncReservation("rejected")
		return nil, domain.ErrGroupReservationsDisabled
	}
	if event.Status == models.EventCancelled {
		metrics.IncReservation("rejected")
		return nil, domain.ErrEventCancelled
	}
	if event.DeadlinePassed(s.now()) {
		metrics.IncReservation("rejected")
		return nil, domain.ErrDeadlinePassed
	}
	if len(students) == 0 {
		return nil, nil
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Close() }()

	if err := s.store.LockEvent(ctx, tx, event.ID); err != nil {
		return nil, err
	}

	limit := event.GroupReservationLimit
	if limit == 0 {
		limit = s.defaultGroupLimit
	}
	if limit > 0 {
		existing, err := s.countReservationsBy(ctx, event.ID, reserver.ID)
		if err != nil {
			return nil, err
		}
		if existing+int64(len(students)) > limit {
			metrics.IncReservation("limit")
			return nil, domain.ErrGroupReservationLimitReached
		}
	}

	counts, err := s.store.StatusCounts(ctx, event.ID, false)
	if err != nil {
		return nil, err
	}
	if capacity.PlacesAvailable(event, counts) < int64(len(students)) {
		metrics.IncReservation("full")
		return nil, domain.ErrEventFull
	}

	reserverID := reserver.ID
	bookings := make([]*models.Booking, 0, len(students))
	for _, student := range students {
		existing, err := s.store.FindBooking(ctx, event.ID, student.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Status != models.StatusCancelled {
			metrics.IncReservation("rejected")
			return nil, domain.ErrAlreadyBooked
		}

		var booking *models.Booking
		if existing != nil {
			booking, err = s.store.UpdateBookingStatus(ctx, tx, event.ID, student.ID, &reserverID, models.StatusReserved, nil)
		} else {
			booking = &models.Booking{
				EventID:     event.ID,
				UserID:      student.ID,
				ReservedBy:  &reserverID,
				Status:      models.StatusReserved,
				BookingDate: s.now().UTC(),
			}
			err = s.store.CreateBooking(ctx, tx, booking)
		}
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.IncReservation("created")
	tokens := s.eventTokens(event)
	tokens["reserver.name"] = reserver.DisplayName()
	for i, booking := range bookings {
		s.publishEvent(events.EventReservationCreated, booking)
		s.notify(ctx, students[i], models.TemplateReservationRequest, tokens)
	}

	recap := s.eventTokens(event)
	recap["reservation.count"] = strconv.Itoa(len(bookings))
	s.notify(ctx, reserver, models.TemplateReservationRecap, recap)

	return bookings, nil
}

// countReservationsBy считает неотмененные брони, созданные резервирующим
// для мероприятия.
func (s *BookingService) countReservationsBy(ctx context.Context, eventID, reserverID int64) (int64, error) {
	all, err := s.store.FindBookingsByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, booking := range all {
		if booking.ReservedBy != nil && *booking.ReservedBy == reserverID && booking.Status != models.StatusCancelled {
			n++
		}
	}
	return n, nil
}

// MarkAttendance фиксирует посещение после мероприятия: CONFIRMED →
// ATTENDED или ABSENT. На места не влияет.
func (s *BookingService) MarkAttendance(ctx context.Context, event *models.Event, userID int64, attended bool) (*models.Booking, error) {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Close() }()

	if err := s.store.LockEvent(ctx, tx, event.ID); err != nil {
		return nil, err
	}

	booking, err := s.store.FindBooking(ctx, event.ID, userID)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.Status != models.StatusConfirmed {
		return nil, domain.ErrBookingNotFound
	}

	status := models.StatusAbsent
	if attended {
		status = models.StatusAttended
	}
	updated, err := s.store.UpdateBookingStatus(ctx, tx, event.ID, userID, booking.ReservedBy, status, nil)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// ListEventBookings возвращает детальные проекции броней мероприятия.
// Доступ ограничен пользователями, которые вправе управлять мероприятием.
func (s *BookingService) ListEventBookings(ctx context.Context, event *models.Event, caller *models.User) ([]models.DetailedBookingView, error) {
	allowed, err := s.IsUserAbleToManageEvent(ctx, caller, event)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrForbidden
	}

	bookings, err := s.store.FindBookingsByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	views := make([]models.DetailedBookingView, 0, len(bookings))
	for _, booking := range bookings {
		user, err := s.users.GetUser(ctx, booking.UserID)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		views = append(views, booking.DetailedView(user))
	}
	return views, nil
}

func (s *BookingService) eventTokens(event *models.Event) map[string]string {
	return map[string]string{
		"event.title": event.Title,
		"event.date":  event.Date.Format("2006-01-02 15:04"),
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		EventID:    booking.EventID,
		UserID:     booking.UserID,
		ReservedBy: booking.ReservedBy,
		Status:     string(booking.Status),
		Date:       booking.BookingDate,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

// notify отправляет уведомление после коммита. Ошибка доставки или шаблона
// логируется и не пробрасывается: бронь уже зафиксирована.
func (s *BookingService) notify(ctx context.Context, user *models.User, templateID string, tokens map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, user, templateID, tokens, s.channel); err != nil {
		s.logNotifyFailure(err, user.ID, templateID)
	}
}

func (s *BookingService) notifyByID(ctx context.Context, userID int64, templateID string, tokens map[string]string) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logNotifyFailure(err, userID, templateID)
		return
	}
	s.notify(ctx, user, templateID, tokens)
}

func (s *BookingService) logNotifyFailure(err error, userID int64, templateID string) {
	metrics.IncNotifyFailure()
	s.logger.Error().Err(err).Int64("user_id", userID).Str("template", templateID).Msg("notification error")
}
