package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/promotion-service/internal/repository"
	"github.com/utafrali/promotion-service/internal/service"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
	"github.com/utafrali/promotion-service/pkg/validator"
)

// PromotionHandler handles HTTP requests for promotion endpoints.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePromotionRequest is the JSON request body for creating a promotion.
type CreatePromotionRequest struct {
	Name         string   `json:"name" validate:"max=255"`
	Note         string   `json:"note" validate:"max=255"`
	DiscountType string   `json:"discount_type" validate:"required,oneof=percentage fixed_amount"`
	Value        float64  `json:"value" validate:"gte=0"`
	CategoryID   *string  `json:"category_id"`
	ProductIDs   []string `json:"product_ids"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
}

// UpdatePromotionRequest is the JSON request body for updating a draft
// promotion.
type UpdatePromotionRequest struct {
	Name         *string  `json:"name" validate:"omitempty,max=255"`
	Note         *string  `json:"note" validate:"omitempty,max=255"`
	DiscountType *string  `json:"discount_type" validate:"omitempty,oneof=percentage fixed_amount"`
	Value        *float64 `json:"value" validate:"omitempty,gte=0"`
	CategoryID   *string  `json:"category_id"`
	ProductIDs   []string `json:"product_ids"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	ClearWindow  bool     `json:"clear_window"`
}

// --- Response envelope ---

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type listResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

type submitResponse struct {
	Data          any      `json:"data"`
	SupersededIDs []string `json:"superseded_ids"`
}

type reindexResponse struct {
	IndexedProducts int `json:"indexed_products"`
}

// --- Handlers ---

// CreatePromotion handles POST /api/v1/promotions
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CreatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	input := service.CreatePromotionRequest{
		Name:         req.Name,
		Note:         req.Note,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		CategoryID:   req.CategoryID,
		ProductIDs:   req.ProductIDs,
	}

	var ok bool
	if input.StartDate, ok = h.parseDate(w, req.StartDate, "start_date"); !ok {
		return
	}
	if input.EndDate, ok = h.parseDate(w, req.EndDate, "end_date"); !ok {
		return
	}

	promotion, err := h.service.CreatePromotion(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: promotion})
}

// ListPromotions handles GET /api/v1/promotions
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	filter := repository.CampaignFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 && perPage <= 100 {
			filter.PerPage = perPage
		}
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		filter.ProductID = &v
	}
	if v := r.URL.Query().Get("category_id"); v != "" {
		filter.CategoryID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.Active = &active
		}
	}

	promotions, total, err := h.service.ListPromotions(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	totalPages := total / filter.PerPage
	if total%filter.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       promotions,
		TotalCount: total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: totalPages,
	})
}

// GetPromotion handles GET /api/v1/promotions/{id}
func (h *PromotionHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promotion, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promotion})
}

// UpdatePromotion handles PUT /api/v1/promotions/{id}
func (h *PromotionHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	var req UpdatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	input := service.UpdatePromotionRequest{
		Name:         req.Name,
		Note:         req.Note,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		CategoryID:   req.CategoryID,
		ProductIDs:   req.ProductIDs,
		ClearWindow:  req.ClearWindow,
	}

	var ok bool
	if input.StartDate, ok = h.parseDate(w, req.StartDate, "start_date"); !ok {
		return
	}
	if input.EndDate, ok = h.parseDate(w, req.EndDate, "end_date"); !ok {
		return
	}

	promotion, err := h.service.UpdatePromotion(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promotion})
}

// SubmitPromotion handles POST /api/v1/promotions/{id}/submit
func (h *PromotionHandler) SubmitPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promotion, superseded, err := h.service.SubmitPromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Data:          promotion,
		SupersededIDs: superseded,
	})
}

// ActivatePromotion handles POST /api/v1/promotions/{id}/activate
func (h *PromotionHandler) ActivatePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	superseded, err := h.service.ActivatePromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Data:          map[string]any{"id": id, "active": true},
		SupersededIDs: superseded,
	})
}

// DeactivatePromotion handles POST /api/v1/promotions/{id}/deactivate
func (h *PromotionHandler) DeactivatePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	if err := h.service.DeactivatePromotion(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]any{"id": id, "active": false}})
}

// DeletePromotion handles DELETE /api/v1/promotions/{id}
func (h *PromotionHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	if err := h.service.DeletePromotion(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /api/v1/index/reindex
func (h *PromotionHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ReindexAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: reindexResponse{IndexedProducts: count}})
}

// --- Helpers ---

func (h *PromotionHandler) parseDate(w http.ResponseWriter, value *string, field string) (*time.Time, bool) {
	if value == nil {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: field + " must be in RFC3339 format"},
		})
		return nil, false
	}
	return &t, true
}

func (h *PromotionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		code = "CONFLICT"
		message = err.Error()
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, response{
		Error: &errorResponse{Code: code, Message: message},
	})
}

func (h *PromotionHandler) writeValidationError(w http.ResponseWriter, err error) {
	var vErr *validator.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{
				Code:    "VALIDATION_FAILED",
				Message: "request validation failed",
				Fields:  vErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
