package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/pc-reservation/internal/application"
)

type computerService interface {
	ListComputers(ctx context.Context) ([]application.Computer, error)
}

type ComputerHandler struct {
	service   computerService
	responder responder
	logger    *slog.Logger
}

func NewComputerHandler(service computerService, logger *slog.Logger) *ComputerHandler {
	base := defaultLogger(logger)
	return &ComputerHandler{service: service, responder: newResponder(base, nil), logger: base}
}

func (h *ComputerHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "ComputerHandler", "List")
	computers, err := h.service.ListComputers(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "computer list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(computers)).InfoContext(r.Context(), "computers listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listComputersResponse{Computers: toComputerDTOs(computers)})
}

type listComputersResponse struct {
	Computers []computerDTO `json:"computers"`
}

type computerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toComputerDTOs(computers []application.Computer) []computerDTO {
	out := make([]computerDTO, 0, len(computers))
	for _, computer := range computers {
		out = append(out, computerDTO{ID: computer.ID, Name: computer.Name})
	}
	return out
}
