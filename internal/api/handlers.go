package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sobytnik/internal/capacity"
	"sobytnik/internal/domain"
	"sobytnik/internal/models"
)

// statusFromError переводит доменную ошибку в HTTP-статус.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEventFull),
		errors.Is(err, domain.ErrAlreadyBooked),
		errors.Is(err, domain.ErrGroupReservationLimitReached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEventCancelled),
		errors.Is(err, domain.ErrDeadlinePassed),
		errors.Is(err, domain.ErrEmailNotVerified),
		errors.Is(err, domain.ErrGroupReservationsDisabled),
		errors.Is(err, domain.ErrNotPromotable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *HTTPServer) eventFromPath(w http.ResponseWriter, r *http.Request) (*models.Event, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return nil, false
	}
	event, err := s.events.GetEvent(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return nil, false
	}
	return event, true
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID        int64             `json:"event_id"`
		UserID         int64             `json:"user_id"`
		AdditionalInfo map[string]string `json:"additional_info"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.EventID <= 0 || body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "event_id and user_id are required")
		return
	}

	event, err := s.events.GetEvent(r.Context(), body.EventID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	user, err := s.users.GetUser(r.Context(), body.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	booking, err := s.bookings.RequestBooking(r.Context(), event, user, body.AdditionalInfo)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking.View())
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID int64 `json:"event_id"`
		UserID  int64 `json:"user_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.EventID <= 0 || body.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "event_id and user_id are required")
		return
	}

	event, err := s.events.GetEvent(r.Context(), body.EventID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.bookings.CancelBooking(r.Context(), event, body.UserID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) handleCreateReservations(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID    int64   `json:"event_id"`
		ReserverID int64   `json:"reserver_id"`
		StudentIDs []int64 `json:"student_ids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.EventID <= 0 || body.ReserverID <= 0 || len(body.StudentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "event_id, reserver_id and student_ids are required")
		return
	}

	event, err := s.events.GetEvent(r.Context(), body.EventID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	reserver, err := s.users.GetUser(r.Context(), body.ReserverID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	students := make([]*models.User, 0, len(body.StudentIDs))
	for _, id := range body.StudentIDs {
		student, err := s.users.GetUser(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		students = append(students, student)
	}

	bookings, err := s.bookings.RequestReservations(r.Context(), event, students, reserver)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	views := make([]models.BookingView, 0, len(bookings))
	for _, booking := range bookings {
		views = append(views, booking.View())
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bookings": views})
}

func (s *HTTPServer) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventID  int64 `json:"event_id"`
		UserID   int64 `json:"user_id"`
		CallerID int64 `json:"caller_id"`
		Attended bool  `json:"attended"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.EventID <= 0 || body.UserID <= 0 || body.CallerID <= 0 {
		writeError(w, http.StatusBadRequest, "event_id, user_id and caller_id are required")
		return
	}

	event, err := s.events.GetEvent(r.Context(), body.EventID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	caller, err := s.users.GetUser(r.Context(), body.CallerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	allowed, err := s.bookings.IsUserAbleToManageEvent(r.Context(), caller, event)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !allowed {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	booking, err := s.bookings.MarkAttendance(r.Context(), event, body.UserID, body.Attended)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking.View())
}

// handlePromote — ручное продвижение брони менеджером, в обход очереди.
func (s *HTTPServer) handlePromote(w http.ResponseWriter, r *http.Request) {
	event, ok := s.eventFromPath(w, r)
	if !ok {
		return
	}

	var body struct {
		UserID   int64 `json:"user_id"`
		CallerID int64 `json:"caller_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID <= 0 || body.CallerID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and caller_id are required")
		return
	}

	caller, err := s.users.GetUser(r.Context(), body.CallerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	allowed, err := s.bookings.IsUserAbleToManageEvent(r.Context(), caller, event)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !allowed {
		s.writeDomainError(w, domain.ErrForbidden)
		return
	}

	booking, err := s.bookings.PromoteToConfirmedBooking(r.Context(), event, body.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking.View())
}

func (s *HTTPServer) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := s.eventFromPath(w, r)
	if !ok {
		return
	}

	counts, err := s.store.StatusCounts(r.Context(), event.ID, false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":            event,
		"places_available": capacity.PlacesAvailable(event, counts),
	})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	event, caller, ok := s.eventAndCaller(w, r)
	if !ok {
		return
	}

	views, err := s.bookings.ListEventBookings(r.Context(), event, caller)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": views})
}

func (s *HTTPServer) handleExportRoster(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	event, caller, ok := s.eventAndCaller(w, r)
	if !ok {
		return
	}

	views, err := s.bookings.ListEventBookings(r.Context(), event, caller)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	path, err := s.exporter.EventRoster(event, views)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file_path": path})
}

func (s *HTTPServer) eventAndCaller(w http.ResponseWriter, r *http.Request) (*models.Event, *models.User, bool) {
	event, ok := s.eventFromPath(w, r)
	if !ok {
		return nil, nil, false
	}

	callerID, err := strconv.ParseInt(r.URL.Query().Get("caller_id"), 10, 64)
	if err != nil || callerID <= 0 {
		writeError(w, http.StatusBadRequest, "caller_id is required")
		return nil, nil, false
	}
	caller, err := s.users.GetUser(r.Context(), callerID)
	if err != nil {
		s.writeDomainError(w, err)
		return nil, nil, false
	}
	return event, caller, true
}
