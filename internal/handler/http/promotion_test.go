package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/repository"
	"github.com/utafrali/promotion-service/internal/service"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
	"github.com/utafrali/promotion-service/pkg/logger"
)

// memCampaignRepo is an in-memory campaign store for handler tests.
type memCampaignRepo struct {
	campaigns map[string]domain.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[string]domain.Campaign)}
}

func (m *memCampaignRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memCampaignRepo) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", id)
	}
	return &c, nil
}

func (m *memCampaignRepo) List(_ context.Context, _ repository.CampaignFilter) ([]domain.Campaign, int, error) {
	out := []domain.Campaign{}
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memCampaignRepo) Update(_ context.Context, c *domain.Campaign) error {
	if _, ok := m.campaigns[c.ID]; !ok {
		return apperrors.NotFound("campaign", c.ID)
	}
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memCampaignRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.campaigns[id]; !ok {
		return apperrors.NotFound("campaign", id)
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memCampaignRepo) FindActiveByProducts(_ context.Context, productIDs []string) ([]domain.Campaign, error) {
	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	out := []domain.Campaign{}
	for _, c := range m.campaigns {
		if !c.Active || c.Status != domain.CampaignStatusSubmitted {
			continue
		}
		for _, pid := range c.ProductIDs {
			if wanted[pid] {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (m *memCampaignRepo) SetActive(_ context.Context, id string, active bool) error {
	c, ok := m.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", id)
	}
	c.Active = active
	m.campaigns[id] = c
	return nil
}

func (m *memCampaignRepo) SetStatus(_ context.Context, id, status string) error {
	c, ok := m.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", id)
	}
	c.Status = status
	m.campaigns[id] = c
	return nil
}

func (m *memCampaignRepo) ListDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	out := []domain.Campaign{}
	for _, c := range m.campaigns {
		campaign := c
		if c.Active && c.Status == domain.CampaignStatusSubmitted && campaign.WindowContains(now) {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (m *memCampaignRepo) ListExpired(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	out := []domain.Campaign{}
	for _, c := range m.campaigns {
		campaign := c
		if c.Active && campaign.Expired(now) {
			out = append(out, campaign)
		}
	}
	return out, nil
}

type stubProductRepo struct {
	ids map[string]bool
}

func (s *stubProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	if !s.ids[id] {
		return nil, apperrors.NotFound("product", id)
	}
	return &domain.Product{ID: id}, nil
}

func (s *stubProductRepo) FilterExisting(_ context.Context, ids []string) ([]string, error) {
	out := []string{}
	for _, id := range ids {
		if s.ids[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *stubProductRepo) ListIDsByCategories(_ context.Context, _ []string) ([]string, error) {
	return []string{}, nil
}

func (s *stubProductRepo) ListAllIDs(_ context.Context) ([]string, error) {
	out := []string{}
	for id := range s.ids {
		out = append(out, id)
	}
	return out, nil
}

type stubVariantRepo struct{}

func (stubVariantRepo) ListByProducts(_ context.Context, _ []string) ([]domain.Variant, error) {
	return []domain.Variant{}, nil
}

func (stubVariantRepo) BulkSave(_ context.Context, _ []domain.Variant) error {
	return nil
}

type stubResolver struct{}

func (stubResolver) ResolveDescendants(_ context.Context, rootID string) ([]string, error) {
	return nil, apperrors.NotFound("category", rootID)
}

type stubIndex struct{}

func (stubIndex) IndexProducts(_ context.Context, _ []string) error { return nil }
func (stubIndex) RemoveProduct(_ context.Context, _ string) error   { return nil }
func (stubIndex) ReindexAll(_ context.Context) (int, error)         { return 3, nil }

type stubProducer struct{}

func (stubProducer) PublishPromotionCreated(context.Context, *domain.Campaign) error { return nil }
func (stubProducer) PublishPromotionUpdated(context.Context, *domain.Campaign) error { return nil }
func (stubProducer) PublishPromotionActivated(context.Context, *domain.Campaign, []string) error {
	return nil
}
func (stubProducer) PublishPromotionDeactivated(context.Context, *domain.Campaign, string) error {
	return nil
}
func (stubProducer) PublishPromotionDeleted(context.Context, *domain.Campaign) error { return nil }

func newTestHandler(t *testing.T) (*PromotionHandler, *memCampaignRepo) {
	t.Helper()
	repo := newMemCampaignRepo()
	svc := service.NewPromotionService(
		repo,
		&stubProductRepo{ids: map[string]bool{"p-1": true, "p-2": true}},
		stubVariantRepo{},
		stubResolver{},
		stubIndex{},
		stubProducer{},
		clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		logger.New("test", "error"),
	)
	return NewPromotionHandler(svc, logger.New("test", "error")), repo
}

func newTestRouter(t *testing.T) (http.Handler, *memCampaignRepo) {
	t.Helper()
	h, repo := newTestHandler(t)

	r := chi.NewRouter()
	r.Post("/api/v1/promotions", h.CreatePromotion)
	r.Get("/api/v1/promotions", h.ListPromotions)
	r.Get("/api/v1/promotions/{id}", h.GetPromotion)
	r.Put("/api/v1/promotions/{id}", h.UpdatePromotion)
	r.Delete("/api/v1/promotions/{id}", h.DeletePromotion)
	r.Post("/api/v1/promotions/{id}/submit", h.SubmitPromotion)
	r.Post("/api/v1/promotions/{id}/deactivate", h.DeactivatePromotion)
	r.Post("/api/v1/index/reindex", h.Reindex)

	return r, repo
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreatePromotionHandler(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/promotions", map[string]any{
		"name":          "Summer Sale",
		"discount_type": "percentage",
		"value":         20,
		"product_ids":   []string{"p-1", "p-2"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data domain.Campaign `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CampaignStatusDraft, resp.Data.Status)
	assert.False(t, resp.Data.Active)
	assert.Len(t, repo.campaigns, 1)
}

func TestCreatePromotionHandler_ValidationFailure(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/promotions", map[string]any{
		"discount_type": "lottery",
		"value":         20,
		"product_ids":   []string{"p-1"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.campaigns)
}

func TestCreatePromotionHandler_EmptyScope(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/promotions", map[string]any{
		"discount_type": "percentage",
		"value":         10,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestGetPromotionHandler_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/promotions/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestSubmitPromotionHandler(t *testing.T) {
	router, repo := newTestRouter(t)

	repo.campaigns["c-1"] = domain.Campaign{
		ID:           "c-1",
		DiscountType: domain.DiscountTypePercentage,
		Value:        15,
		Status:       domain.CampaignStatusDraft,
		ProductIDs:   []string{"p-1"},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/promotions/c-1/submit", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.campaigns["c-1"].Active)
	assert.Equal(t, domain.CampaignStatusSubmitted, repo.campaigns["c-1"].Status)
}

func TestSubmitPromotionHandler_AlreadySubmitted(t *testing.T) {
	router, repo := newTestRouter(t)

	repo.campaigns["c-1"] = domain.Campaign{
		ID:     "c-1",
		Status: domain.CampaignStatusSubmitted,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/promotions/c-1/submit", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFLICT")
}

func TestUpdatePromotionHandler_NonDraft(t *testing.T) {
	router, repo := newTestRouter(t)

	repo.campaigns["c-1"] = domain.Campaign{
		ID:     "c-1",
		Status: domain.CampaignStatusSubmitted,
	}

	rec := doJSON(t, router, http.MethodPut, "/api/v1/promotions/c-1", map[string]any{
		"name": "Renamed",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeletePromotionHandler(t *testing.T) {
	router, repo := newTestRouter(t)

	repo.campaigns["c-1"] = domain.Campaign{
		ID:         "c-1",
		Status:     domain.CampaignStatusDraft,
		ProductIDs: []string{"p-1"},
	}

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/promotions/c-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.campaigns)
}

func TestListPromotionsHandler(t *testing.T) {
	router, repo := newTestRouter(t)

	repo.campaigns["c-1"] = domain.Campaign{ID: "c-1", Status: domain.CampaignStatusDraft}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/promotions?page=1&per_page=10", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalCount int `json:"total_count"`
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.PerPage)
}

func TestReindexHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/index/reindex", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"indexed_products":3`)
}
