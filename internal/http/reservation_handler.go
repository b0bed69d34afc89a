package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/timegrid"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	UpdateReservation(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	DeleteReservation(ctx context.Context, reservationID string) error
	ListReservationsForDay(ctx context.Context, params application.ListForDayParams) ([]application.Reservation, error)
	ListAllReservations(ctx context.Context, limit int) (application.ReservationListing, error)
}

type ReservationHandler struct {
	service   reservationService
	grid      timegrid.Grid
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, grid timegrid.Grid, now func() time.Time, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &ReservationHandler{
		service:   service,
		grid:      grid,
		now:       now,
		responder: newResponder(base, &grid),
		logger:    base,
	}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) ListForDay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	date := h.grid.StartOfDay(h.now())
	if value := strings.TrimSpace(query.Get("date")); value != "" {
		parsed, err := h.grid.ParseDate(value)
		if err != nil {
			h.log(r.Context(), "ListForDay", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid date parameter", "date", value)
			h.responder.writeFieldErrors(r.Context(), w, map[string]string{"date": "日付は YYYY-MM-DD 形式で指定してください。"})
			return
		}
		date = parsed
	}
	computerID := strings.TrimSpace(query.Get("computer_id"))

	logger := h.log(r.Context(), "ListForDay", "date", h.grid.DateKey(date), "computer_id", computerID)
	reservations, err := h.service.ListReservationsForDay(r.Context(), application.ListForDayParams{
		ComputerID: computerID,
		Date:       date,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{
		Reservations: h.toReservationDTOs(reservations),
	})
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, fieldErrors := req.toParams()
	if len(fieldErrors) > 0 {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid reservation times", "fields", fieldErrors)
		h.responder.writeFieldErrors(r.Context(), w, fieldErrors)
		return
	}

	logger := h.log(r.Context(), "Create", "computer_id", params.ComputerID)
	reservation, err := h.service.CreateReservation(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: h.toReservationDTO(reservation)})
}

func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	limit := 0
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			h.responder.writeFieldErrors(r.Context(), w, map[string]string{"limit": "件数は整数で指定してください。"})
			return
		}
		limit = parsed
	}

	logger := h.log(r.Context(), "ListAll", "limit", limit)
	listing, err := h.service.ListAllReservations(r.Context(), limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation overview failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	byDate := make(map[string][]reservationDTO, len(listing.ByDate))
	for key, reservations := range listing.ByDate {
		byDate[key] = h.toReservationDTOs(reservations)
	}

	logger.With("result_count", listing.TotalCount).InfoContext(r.Context(), "reservation overview listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAllReservationsResponse{
		Reservations: h.toReservationDTOs(listing.Reservations),
		ByDate:       byDate,
		TotalCount:   listing.TotalCount,
	})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	var req updateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, fieldErrors := req.toParams(reservationID)
	if len(fieldErrors) > 0 {
		h.log(r.Context(), "Update", "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "invalid reservation times", "fields", fieldErrors)
		h.responder.writeFieldErrors(r.Context(), w, fieldErrors)
		return
	}

	logger := h.log(r.Context(), "Update", "reservation_id", reservationID)
	reservation, err := h.service.UpdateReservation(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: h.toReservationDTO(reservation)})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	logger := h.log(r.Context(), "Delete", "reservation_id", reservationID)
	if err := h.service.DeleteReservation(r.Context(), reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deleteResponse{Success: true})
}

type createReservationRequest struct {
	ComputerID string  `json:"computer_id"`
	UserName   string  `json:"user_name"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Notes      *string `json:"notes"`
}

func (r createReservationRequest) toParams() (application.CreateReservationParams, map[string]string) {
	fieldErrors := make(map[string]string)
	start := parseInstantField(r.StartTime, "start_time", fieldErrors)
	end := parseInstantField(r.EndTime, "end_time", fieldErrors)
	return application.CreateReservationParams{
		ComputerID: strings.TrimSpace(r.ComputerID),
		UserName:   r.UserName,
		Start:      start,
		End:        end,
		Notes:      r.Notes,
	}, fieldErrors
}

type updateReservationRequest struct {
	UserName  string  `json:"user_name"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Notes     *string `json:"notes"`
}

func (r updateReservationRequest) toParams(reservationID string) (application.UpdateReservationParams, map[string]string) {
	fieldErrors := make(map[string]string)
	params := application.UpdateReservationParams{
		ReservationID: reservationID,
		UserName:      r.UserName,
		Notes:         r.Notes,
	}
	if r.StartTime != nil && strings.TrimSpace(*r.StartTime) != "" {
		start := parseInstantField(*r.StartTime, "start_time", fieldErrors)
		params.Start = &start
	}
	if r.EndTime != nil && strings.TrimSpace(*r.EndTime) != "" {
		end := parseInstantField(*r.EndTime, "end_time", fieldErrors)
		params.End = &end
	}
	return params, fieldErrors
}

// parseInstantField accepts RFC 3339 with an offset or Z. An empty value yields
// the zero time and is left to service validation.
func parseInstantField(value, field string, fieldErrors map[string]string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		fieldErrors[field] = "日時は RFC 3339 形式（タイムゾーン付き）で指定してください。"
		return time.Time{}
	}
	return ts
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type listAllReservationsResponse struct {
	Reservations []reservationDTO            `json:"reservations"`
	ByDate       map[string][]reservationDTO `json:"by_date"`
	TotalCount   int                         `json:"total_count"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

type reservationDTO struct {
	ID           string  `json:"id"`
	ComputerID   string  `json:"computer_id"`
	ComputerName string  `json:"computer_name"`
	UserName     string  `json:"user_name"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	TimeRange    string  `json:"time_range"`
	Notes        *string `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func (h *ReservationHandler) toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:           reservation.ID,
		ComputerID:   reservation.ComputerID,
		ComputerName: reservation.ComputerName,
		UserName:     reservation.UserName,
		StartTime:    formatInstant(reservation.Start, h.grid),
		EndTime:      formatInstant(reservation.End, h.grid),
		TimeRange:    h.grid.FormatRange(reservation.Start, reservation.End),
		Notes:        reservation.Notes,
		CreatedAt:    formatInstant(reservation.CreatedAt, h.grid),
		UpdatedAt:    formatInstant(reservation.UpdatedAt, h.grid),
	}
}

func (h *ReservationHandler) toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, h.toReservationDTO(reservation))
	}
	return out
}

func formatInstant(t time.Time, grid timegrid.Grid) string {
	if t.IsZero() {
		return ""
	}
	return t.In(grid.Location()).Format(time.RFC3339)
}
