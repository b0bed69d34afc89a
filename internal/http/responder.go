package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/pc-reservation/internal/application"
	"github.com/example/pc-reservation/internal/timegrid"
)

var (
	errBadRequestBody       = errors.New("無効なリクエスト形式です。")
	errInvalidReservationID = errors.New("無効な予約 ID です。")
)

type responder struct {
	logger *slog.Logger
	grid   timegrid.Grid
}

// newResponder renders instants in grid's location; a nil grid means JST.
func newResponder(logger *slog.Logger, grid *timegrid.Grid) responder {
	if logger == nil {
		logger = slog.Default()
	}
	r := responder{logger: logger, grid: timegrid.New(nil)}
	if grid != nil {
		r.grid = *grid
	}
	return r
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// writeFieldErrors reports request fields the handler could not parse.
func (r responder) writeFieldErrors(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
		ErrorCode: "INVALID_INPUT",
		Message:   localizedStatusMessage(http.StatusBadRequest),
		Errors:    fields,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *application.ConflictError
	if errors.As(err, &conflict) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_CONFLICT",
			Message:   "指定された時間帯は既に予約されています（" + r.grid.FormatRange(conflict.Start, conflict.End) + "）。",
			Conflict: &conflictDTO{
				ReservationID: conflict.ReservationID,
				ComputerID:    conflict.ComputerID,
				StartTime:     formatInstant(conflict.Start, r.grid),
				EndTime:       formatInstant(conflict.End, r.grid),
			},
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrOverlapConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_CONFLICT",
			Message:   "指定された時間帯は既に予約されています。",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "同じ名前のパソコンが既に登録されています。"})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定された予約が見つかりません。"})
	case errors.Is(err, application.ErrStorageUnavailable):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STORAGE_UNAVAILABLE",
			Message:   "データベースに接続できません。時間をおいて再度お試しください。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
				ErrorCode: "INVALID_INPUT",
				Message:   "入力内容に誤りがあります。",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusServiceUnavailable:
		return "サービスを一時的に利用できません。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "computer_id is required":
		return "パソコンを選択してください。"
	case "computer does not exist":
		return "指定されたパソコンは存在しません。"
	case "user_name is required":
		return "予約者名は必須です。"
	case "start_time is required":
		return "開始日時は必須です。"
	case "end_time is required":
		return "終了日時は必須です。"
	case "start_time must be before end_time":
		return "終了日時は開始日時より後である必要があります。"
	case "date is required":
		return "日付は必須です。"
	case "limit must not be negative":
		return "件数は 0 以上で指定してください。"
	case "name is required":
		return "パソコン名は必須です。"
	case "name is invalid":
		return "パソコン名が不正です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}

type conflictDTO struct {
	ReservationID string `json:"reservation_id"`
	ComputerID    string `json:"computer_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}
