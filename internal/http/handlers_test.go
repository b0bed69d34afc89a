package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/timegrid"
)

type reservationServiceStub struct {
	createParams application.CreateReservationParams
	updateParams application.UpdateReservationParams
	listParams   application.ListForDayParams
	deletedID    string
	limit        int

	reservation  application.Reservation
	reservations []application.Reservation
	listing      application.ReservationListing
	err          error
}

func (s *reservationServiceStub) CreateReservation(_ context.Context, params application.CreateReservationParams) (application.Reservation, error) {
	s.createParams = params
	return s.reservation, s.err
}

func (s *reservationServiceStub) UpdateReservation(_ context.Context, params application.UpdateReservationParams) (application.Reservation, error) {
	s.updateParams = params
	return s.reservation, s.err
}

func (s *reservationServiceStub) DeleteReservation(_ context.Context, id string) error {
	s.deletedID = id
	return s.err
}

func (s *reservationServiceStub) ListReservationsForDay(_ context.Context, params application.ListForDayParams) ([]application.Reservation, error) {
	s.listParams = params
	return s.reservations, s.err
}

func (s *reservationServiceStub) ListAllReservations(_ context.Context, limit int) (application.ReservationListing, error) {
	s.limit = limit
	return s.listing, s.err
}

type computerServiceStub struct {
	computers []application.Computer
	err       error
}

func (s *computerServiceStub) ListComputers(context.Context) ([]application.Computer, error) {
	return s.computers, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)
}

func sampleReservation() application.Reservation {
	notes := "授業準備"
	return application.Reservation{
		ID:           "res-1",
		ComputerID:   "pc-1",
		ComputerName: "1号機（白）富士通",
		UserName:     "山田",
		Start:        time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 1, 10, 2, 30, 0, 0, time.UTC),
		Notes:        &notes,
		CreatedAt:    fixedNow(),
		UpdatedAt:    fixedNow(),
	}
}

func newTestRouter(reservations *reservationServiceStub, computers *computerServiceStub, health HealthCheck) http.Handler {
	grid := timegrid.New(nil)
	logger := discardLogger()
	return NewRouter(RouterConfig{
		Computers:    NewComputerHandler(computers, logger),
		Reservations: NewReservationHandler(reservations, grid, fixedNow, logger),
		Health:       health,
		Middleware:   []func(http.Handler) http.Handler{RequestLogger(logger), Recoverer(logger)},
	})
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestComputerHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list renders id and name", func(t *testing.T) {
		t.Parallel()

		computers := &computerServiceStub{computers: []application.Computer{{ID: "pc-1", Name: "1号機（白）富士通"}}}
		rec := serve(t, newTestRouter(&reservationServiceStub{}, computers, nil), http.MethodGet, "/computers", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[listComputersResponse](t, rec)
		if len(body.Computers) != 1 || body.Computers[0].ID != "pc-1" || body.Computers[0].Name != "1号機（白）富士通" {
			t.Fatalf("unexpected computers: %+v", body.Computers)
		}
	})

	t.Run("storage failure maps to 503", func(t *testing.T) {
		t.Parallel()

		computers := &computerServiceStub{err: application.ErrStorageUnavailable}
		rec := serve(t, newTestRouter(&reservationServiceStub{}, computers, nil), http.MethodGet, "/computers", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, nil), http.MethodPost, "/computers", "{}")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if got := rec.Header().Get("Allow"); got != http.MethodGet {
			t.Fatalf("unexpected Allow header %q", got)
		}
	})
}

func TestReservationHandlersCreate(t *testing.T) {
	t.Parallel()

	t.Run("parses offsets and returns 201", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{reservation: sampleReservation()}
		body := `{"computer_id":" pc-1 ","user_name":"山田","start_time":"2024-01-10T10:00:00+09:00","end_time":"2024-01-10T11:30:00+09:00","notes":"授業準備"}`
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodPost, "/reservations", body)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		if stub.createParams.ComputerID != "pc-1" {
			t.Fatalf("expected trimmed computer id, got %q", stub.createParams.ComputerID)
		}
		if !stub.createParams.Start.Equal(time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", stub.createParams.Start)
		}
		if stub.createParams.Notes == nil || *stub.createParams.Notes != "授業準備" {
			t.Fatalf("notes not forwarded: %v", stub.createParams.Notes)
		}

		resp := decodeBody[reservationResponse](t, rec)
		if resp.Reservation.StartTime != "2024-01-10T10:00:00+09:00" {
			t.Fatalf("expected JST rendering, got %q", resp.Reservation.StartTime)
		}
		if resp.Reservation.TimeRange != "10:00～11:30" {
			t.Fatalf("unexpected time range %q", resp.Reservation.TimeRange)
		}
		if resp.Reservation.ComputerName != "1号機（白）富士通" {
			t.Fatalf("unexpected computer name %q", resp.Reservation.ComputerName)
		}
	})

	t.Run("naive timestamps are rejected before the service", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{}
		body := `{"computer_id":"pc-1","user_name":"山田","start_time":"2024-01-10T10:00:00","end_time":"2024-01-10T11:00:00Z"}`
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodPost, "/reservations", body)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		resp := decodeBody[errorResponse](t, rec)
		if _, ok := resp.Errors["start_time"]; !ok {
			t.Fatalf("expected start_time field error, got %+v", resp.Errors)
		}
		if _, ok := resp.Errors["end_time"]; ok {
			t.Fatalf("end_time should parse, got %+v", resp.Errors)
		}
		if stub.createParams.ComputerID != "" {
			t.Fatalf("service should not be called")
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, nil), http.MethodPost, "/reservations", "{")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		t.Parallel()

		conflict := &application.ConflictError{
			ReservationID: "res-9",
			ComputerID:    "pc-1",
			Start:         time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC),
			End:           time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC),
		}
		validation := &application.ValidationError{FieldErrors: map[string]string{"user_name": "user_name is required"}}

		tests := []struct {
			name   string
			err    error
			status int
			code   string
		}{
			{name: "conflict", err: conflict, status: http.StatusConflict, code: "RESERVATION_CONFLICT"},
			{name: "validation", err: validation, status: http.StatusBadRequest, code: "INVALID_INPUT"},
			{name: "storage", err: application.ErrStorageUnavailable, status: http.StatusServiceUnavailable, code: "STORAGE_UNAVAILABLE"},
			{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				stub := &reservationServiceStub{err: tc.err}
				body := `{"computer_id":"pc-1","user_name":"山田","start_time":"2024-01-10T10:00:00+09:00","end_time":"2024-01-10T11:00:00+09:00"}`
				rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodPost, "/reservations", body)

				if rec.Code != tc.status {
					t.Fatalf("expected %d, got %d", tc.status, rec.Code)
				}
				resp := decodeBody[errorResponse](t, rec)
				if resp.ErrorCode != tc.code {
					t.Fatalf("expected error code %q, got %q", tc.code, resp.ErrorCode)
				}
				if tc.name == "conflict" {
					if resp.Conflict == nil || resp.Conflict.ReservationID != "res-9" {
						t.Fatalf("expected conflict detail, got %+v", resp.Conflict)
					}
					if !strings.Contains(resp.Message, "10:00～11:00") {
						t.Fatalf("expected local range in message, got %q", resp.Message)
					}
				}
				if tc.name == "validation" && resp.Errors["user_name"] != "予約者名は必須です。" {
					t.Fatalf("expected localized field message, got %+v", resp.Errors)
				}
			})
		}
	})
}

func TestReservationHandlersList(t *testing.T) {
	t.Parallel()

	t.Run("defaults to today in the grid location", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{reservations: []application.Reservation{sampleReservation()}}
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodGet, "/reservations?computer_id=pc-1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		want := time.Date(2024, 1, 10, 0, 0, 0, 0, timegrid.JST())
		if !stub.listParams.Date.Equal(want) {
			t.Fatalf("expected %v, got %v", want, stub.listParams.Date)
		}
		if stub.listParams.ComputerID != "pc-1" {
			t.Fatalf("unexpected computer filter %q", stub.listParams.ComputerID)
		}
		resp := decodeBody[listReservationsResponse](t, rec)
		if len(resp.Reservations) != 1 {
			t.Fatalf("expected one reservation, got %d", len(resp.Reservations))
		}
	})

	t.Run("explicit date and invalid date", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{}
		router := newTestRouter(stub, &computerServiceStub{}, nil)

		rec := serve(t, router, http.MethodGet, "/reservations?date=2024-02-29", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := stub.listParams.Date.Format("2006-01-02"); got != "2024-02-29" {
			t.Fatalf("unexpected date %s", got)
		}

		rec = serve(t, router, http.MethodGet, "/reservations?date=2024-13-01", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("overview groups by date", func(t *testing.T) {
		t.Parallel()

		res := sampleReservation()
		stub := &reservationServiceStub{listing: application.ReservationListing{
			Reservations: []application.Reservation{res},
			ByDate:       map[string][]application.Reservation{"2024-01-10": {res}},
			TotalCount:   1,
		}}
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodGet, "/reservations/all?limit=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.limit != 5 {
			t.Fatalf("expected limit 5, got %d", stub.limit)
		}
		resp := decodeBody[listAllReservationsResponse](t, rec)
		if resp.TotalCount != 1 || len(resp.ByDate["2024-01-10"]) != 1 {
			t.Fatalf("unexpected overview %+v", resp)
		}
	})

	t.Run("non numeric limit is rejected", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, nil), http.MethodGet, "/reservations/all?limit=ten", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestReservationHandlersMutations(t *testing.T) {
	t.Parallel()

	t.Run("update forwards optional fields", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{reservation: sampleReservation()}
		body := `{"user_name":"佐藤","end_time":"2024-01-10T12:00:00+09:00","notes":""}`
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodPut, "/reservations/res-1", body)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		params := stub.updateParams
		if params.ReservationID != "res-1" || params.UserName != "佐藤" {
			t.Fatalf("unexpected params %+v", params)
		}
		if params.Start != nil {
			t.Fatalf("start should stay unset, got %v", params.Start)
		}
		if params.End == nil || !params.End.Equal(time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected end %v", params.End)
		}
		if params.Notes == nil || *params.Notes != "" {
			t.Fatalf("expected explicit empty notes, got %v", params.Notes)
		}
	})

	t.Run("update of a missing reservation is 404", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{err: application.ErrNotFound}
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodPut, "/reservations/missing", `{"user_name":"佐藤"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete reports success", func(t *testing.T) {
		t.Parallel()

		stub := &reservationServiceStub{}
		rec := serve(t, newTestRouter(stub, &computerServiceStub{}, nil), http.MethodDelete, "/reservations/res-1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.deletedID != "res-1" {
			t.Fatalf("unexpected deleted id %q", stub.deletedID)
		}
		if resp := decodeBody[deleteResponse](t, rec); !resp.Success {
			t.Fatalf("expected success flag")
		}
	})

	t.Run("nested paths are not routed", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, nil), http.MethodDelete, "/reservations/res-1/extra", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("patch is not allowed", func(t *testing.T) {
		t.Parallel()

		rec := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, nil), http.MethodPatch, "/reservations/res-1", "{}")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	healthy := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, func(context.Context) error { return nil }), http.MethodGet, "/healthz", "")
	if healthy.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", healthy.Code)
	}

	failing := serve(t, newTestRouter(&reservationServiceStub{}, &computerServiceStub{}, func(context.Context) error { return errors.New("down") }), http.MethodGet, "/healthz", "")
	if failing.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", failing.Code)
	}
}

func TestNilHandlersFailClosed(t *testing.T) {
	t.Parallel()

	var handler *ReservationHandler
	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/reservations", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
