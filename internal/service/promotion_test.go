package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/repository"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
	"github.com/utafrali/promotion-service/pkg/logger"
)

type mockCampaignRepo struct {
	mock.Mock
}

func (m *mockCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepo) List(ctx context.Context, filter repository.CampaignFilter) ([]domain.Campaign, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Campaign), args.Int(1), args.Error(2)
}

func (m *mockCampaignRepo) Update(ctx context.Context, c *domain.Campaign) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCampaignRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCampaignRepo) FindActiveByProducts(ctx context.Context, productIDs []string) ([]domain.Campaign, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepo) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockCampaignRepo) SetStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockCampaignRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

func (m *mockCampaignRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) FilterExisting(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProductRepo) ListIDsByCategories(ctx context.Context, categoryIDs []string) ([]string, error) {
	args := m.Called(ctx, categoryIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProductRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// fakeVariantRepo keeps variants in memory so pricing assertions can read
// back what BulkSave wrote.
type fakeVariantRepo struct {
	variants map[string]domain.Variant
}

func newFakeVariantRepo(variants ...domain.Variant) *fakeVariantRepo {
	f := &fakeVariantRepo{variants: make(map[string]domain.Variant)}
	for _, v := range variants {
		f.variants[v.ID] = v
	}
	return f
}

func (f *fakeVariantRepo) ListByProducts(_ context.Context, productIDs []string) ([]domain.Variant, error) {
	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	out := []domain.Variant{}
	for _, v := range f.variants {
		if wanted[v.ProductID] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeVariantRepo) BulkSave(_ context.Context, variants []domain.Variant) error {
	for _, v := range variants {
		f.variants[v.ID] = v
	}
	return nil
}

type fakeResolver struct {
	descendants map[string][]string
}

func (f *fakeResolver) ResolveDescendants(_ context.Context, rootID string) ([]string, error) {
	ids, ok := f.descendants[rootID]
	if !ok {
		return nil, apperrors.NotFound("category", rootID)
	}
	return ids, nil
}

type fakeIndexSyncer struct {
	indexed [][]string
	removed []string
	fail    bool
}

func (f *fakeIndexSyncer) IndexProducts(_ context.Context, productIDs []string) error {
	if f.fail {
		return errors.New("index unavailable")
	}
	f.indexed = append(f.indexed, productIDs)
	return nil
}

func (f *fakeIndexSyncer) RemoveProduct(_ context.Context, productID string) error {
	f.removed = append(f.removed, productID)
	return nil
}

func (f *fakeIndexSyncer) ReindexAll(_ context.Context) (int, error) {
	return 0, nil
}

type noopProducer struct{}

func (noopProducer) PublishPromotionCreated(context.Context, *domain.Campaign) error { return nil }
func (noopProducer) PublishPromotionUpdated(context.Context, *domain.Campaign) error { return nil }
func (noopProducer) PublishPromotionActivated(context.Context, *domain.Campaign, []string) error {
	return nil
}
func (noopProducer) PublishPromotionDeactivated(context.Context, *domain.Campaign, string) error {
	return nil
}
func (noopProducer) PublishPromotionDeleted(context.Context, *domain.Campaign) error { return nil }

type fixture struct {
	campaigns *mockCampaignRepo
	products  *mockProductRepo
	variants  *fakeVariantRepo
	resolver  *fakeResolver
	index     *fakeIndexSyncer
	clock     *clock.FakeClock
	svc       *PromotionService
}

func newFixture(t *testing.T, variants ...domain.Variant) *fixture {
	t.Helper()
	f := &fixture{
		campaigns: new(mockCampaignRepo),
		products:  new(mockProductRepo),
		variants:  newFakeVariantRepo(variants...),
		resolver:  &fakeResolver{descendants: map[string][]string{}},
		index:     &fakeIndexSyncer{},
		clock:     clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewPromotionService(
		f.campaigns, f.products, f.variants, f.resolver, f.index,
		noopProducer{}, f.clock, logger.New("test", "error"),
	)
	return f
}

func TestCreatePromotion(t *testing.T) {
	f := newFixture(t)

	f.products.On("FilterExisting", mock.Anything, []string{"p-2", "p-1"}).
		Return([]string{"p-1", "p-2"}, nil)
	f.campaigns.On("Create", mock.Anything, mock.AnythingOfType("*domain.Campaign")).
		Return(nil)

	campaign, err := f.svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		Name:         "Summer Sale",
		DiscountType: domain.DiscountTypePercentage,
		Value:        20,
		ProductIDs:   []string{"p-2", "p-1"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, campaign.ID)
	assert.Equal(t, domain.CampaignStatusDraft, campaign.Status)
	assert.False(t, campaign.Active)
	assert.Equal(t, []string{"p-1", "p-2"}, campaign.ProductIDs)

	f.campaigns.AssertExpectations(t)
}

func TestCreatePromotion_CategoryScope(t *testing.T) {
	f := newFixture(t)
	catID := "shoes"

	f.products.On("FilterExisting", mock.Anything, []string{"p-9"}).
		Return([]string{"p-9"}, nil)
	f.resolver.descendants["shoes"] = []string{"shoes", "sneakers"}
	f.products.On("ListIDsByCategories", mock.Anything, []string{"shoes", "sneakers"}).
		Return([]string{"p-1", "p-9"}, nil)
	f.campaigns.On("Create", mock.Anything, mock.AnythingOfType("*domain.Campaign")).
		Return(nil)

	campaign, err := f.svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		DiscountType: domain.DiscountTypeFixedAmount,
		Value:        5,
		CategoryID:   &catID,
		ProductIDs:   []string{"p-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-9"}, campaign.ProductIDs)
}

func TestCreatePromotion_EmptyScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		DiscountType: domain.DiscountTypePercentage,
		Value:        10,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.campaigns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatePromotion_MissingProduct(t *testing.T) {
	f := newFixture(t)

	f.products.On("FilterExisting", mock.Anything, []string{"p-1", "ghost"}).
		Return([]string{"p-1"}, nil)

	_, err := f.svc.CreatePromotion(context.Background(), CreatePromotionRequest{
		DiscountType: domain.DiscountTypePercentage,
		Value:        10,
		ProductIDs:   []string{"p-1", "ghost"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreatePromotion_InvalidValue(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name         string
		discountType string
		value        float64
	}{
		{"negative value", domain.DiscountTypePercentage, -5},
		{"percentage over 100", domain.DiscountTypePercentage, 120},
		{"unknown type", "bogus", 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePromotion(context.Background(), CreatePromotionRequest{
				DiscountType: tc.discountType,
				Value:        tc.value,
				ProductIDs:   []string{"p-1"},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestUpdatePromotion_NonDraft(t *testing.T) {
	f := newFixture(t)

	f.campaigns.On("GetByID", mock.Anything, "c-1").
		Return(&domain.Campaign{ID: "c-1", Status: domain.CampaignStatusSubmitted}, nil)

	name := "New Name"
	_, err := f.svc.UpdatePromotion(context.Background(), "c-1", UpdatePromotionRequest{Name: &name})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	f.campaigns.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubmitPromotion_ActivatesAndAppliesPricing(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100000},
		domain.Variant{ID: "v-2", ProductID: "p-1", BasePrice: 50000},
	)

	draft := &domain.Campaign{
		ID:           "c-1",
		DiscountType: domain.DiscountTypePercentage,
		Value:        20,
		Status:       domain.CampaignStatusDraft,
		ProductIDs:   []string{"p-1"},
	}
	submitted := *draft
	submitted.Status = domain.CampaignStatusSubmitted

	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(draft, nil).Once()
	f.campaigns.On("SetStatus", mock.Anything, "c-1", domain.CampaignStatusSubmitted).Return(nil)
	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(&submitted, nil).Once()
	f.campaigns.On("FindActiveByProducts", mock.Anything, []string{"p-1"}).
		Return([]domain.Campaign{}, nil)
	f.campaigns.On("SetActive", mock.Anything, "c-1", true).Return(nil)

	campaign, superseded, err := f.svc.SubmitPromotion(context.Background(), "c-1")
	require.NoError(t, err)
	assert.True(t, campaign.Active)
	assert.Empty(t, superseded)

	v1 := f.variants.variants["v-1"]
	assert.Equal(t, 80000.0, v1.DiscountPrice)
	assert.Equal(t, 20.0, v1.DiscountPercent)
	assert.True(t, v1.OnSales)

	require.Len(t, f.index.indexed, 1)
	assert.Equal(t, []string{"p-1"}, f.index.indexed[0])

	f.campaigns.AssertExpectations(t)
}

func TestActivatePromotion_SupersedesConflicts(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100,
			DiscountPrice: 90, DiscountPercent: 10, OnSales: true, SaleNote: "Promotion"},
		domain.Variant{ID: "v-2", ProductID: "p-2", BasePrice: 200,
			DiscountPrice: 180, DiscountPercent: 10, OnSales: true, SaleNote: "Promotion"},
	)

	incoming := &domain.Campaign{
		ID:           "c-new",
		DiscountType: domain.DiscountTypeFixedAmount,
		Value:        30,
		Status:       domain.CampaignStatusSubmitted,
		ProductIDs:   []string{"p-1"},
	}
	prior := domain.Campaign{
		ID:         "c-old",
		Active:     true,
		Status:     domain.CampaignStatusSubmitted,
		ProductIDs: []string{"p-1", "p-2"},
	}

	f.campaigns.On("GetByID", mock.Anything, "c-new").Return(incoming, nil)
	f.campaigns.On("FindActiveByProducts", mock.Anything, []string{"p-1"}).
		Return([]domain.Campaign{prior}, nil)
	f.campaigns.On("SetActive", mock.Anything, "c-old", false).Return(nil)
	f.campaigns.On("SetActive", mock.Anything, "c-new", true).Return(nil)

	superseded, err := f.svc.ActivatePromotion(context.Background(), "c-new")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-old"}, superseded)

	// p-1 carries only the new campaign's pricing.
	v1 := f.variants.variants["v-1"]
	assert.Equal(t, 70.0, v1.DiscountPrice)
	assert.Equal(t, 30.0, v1.DiscountPercent)
	assert.True(t, v1.OnSales)

	// p-2 was only in the prior campaign's scope and is fully reverted.
	v2 := f.variants.variants["v-2"]
	assert.False(t, v2.OnSales)
	assert.Zero(t, v2.DiscountPrice)
	assert.Zero(t, v2.DiscountPercent)

	f.campaigns.AssertExpectations(t)
}

func TestActivatePromotion_OutsideWindowDefersPricing(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100},
	)

	start := f.clock.Now().Add(24 * time.Hour)
	campaign := &domain.Campaign{
		ID:           "c-1",
		DiscountType: domain.DiscountTypePercentage,
		Value:        10,
		Status:       domain.CampaignStatusSubmitted,
		StartDate:    &start,
		ProductIDs:   []string{"p-1"},
	}

	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(campaign, nil)
	f.campaigns.On("FindActiveByProducts", mock.Anything, []string{"p-1"}).
		Return([]domain.Campaign{}, nil)
	f.campaigns.On("SetActive", mock.Anything, "c-1", true).Return(nil)

	_, err := f.svc.ActivatePromotion(context.Background(), "c-1")
	require.NoError(t, err)

	// Window has not opened: pricing untouched, index untouched.
	assert.False(t, f.variants.variants["v-1"].OnSales)
	assert.Empty(t, f.index.indexed)
}

func TestActivatePromotion_NotSubmitted(t *testing.T) {
	f := newFixture(t)

	f.campaigns.On("GetByID", mock.Anything, "c-1").
		Return(&domain.Campaign{ID: "c-1", Status: domain.CampaignStatusDraft}, nil)

	_, err := f.svc.ActivatePromotion(context.Background(), "c-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestActivatePromotion_IndexFailureIsNonFatal(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100},
	)
	f.index.fail = true

	campaign := &domain.Campaign{
		ID:           "c-1",
		DiscountType: domain.DiscountTypePercentage,
		Value:        50,
		Status:       domain.CampaignStatusSubmitted,
		ProductIDs:   []string{"p-1"},
	}

	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(campaign, nil)
	f.campaigns.On("FindActiveByProducts", mock.Anything, []string{"p-1"}).
		Return([]domain.Campaign{}, nil)
	f.campaigns.On("SetActive", mock.Anything, "c-1", true).Return(nil)

	_, err := f.svc.ActivatePromotion(context.Background(), "c-1")
	require.NoError(t, err)

	// Pricing committed even though the index refresh failed.
	assert.Equal(t, 50.0, f.variants.variants["v-1"].DiscountPrice)
}

func TestDeactivatePromotion(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100,
			DiscountPrice: 80, DiscountPercent: 20, OnSales: true, SaleNote: "Promotion"},
	)

	campaign := &domain.Campaign{
		ID:         "c-1",
		Active:     true,
		Status:     domain.CampaignStatusSubmitted,
		ProductIDs: []string{"p-1"},
	}

	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(campaign, nil)
	f.campaigns.On("SetActive", mock.Anything, "c-1", false).Return(nil)

	err := f.svc.DeactivatePromotion(context.Background(), "c-1")
	require.NoError(t, err)

	v1 := f.variants.variants["v-1"]
	assert.False(t, v1.OnSales)
	assert.Zero(t, v1.DiscountPrice)
	assert.Zero(t, v1.DiscountPercent)
	assert.Empty(t, v1.SaleNote)

	require.Len(t, f.index.indexed, 1)
}

func TestDeletePromotion_RestoresPricing(t *testing.T) {
	f := newFixture(t,
		domain.Variant{ID: "v-1", ProductID: "p-1", BasePrice: 100,
			DiscountPrice: 75, DiscountPercent: 25, OnSales: true},
	)

	campaign := &domain.Campaign{
		ID:         "c-1",
		Active:     true,
		Status:     domain.CampaignStatusSubmitted,
		ProductIDs: []string{"p-1"},
	}

	f.campaigns.On("GetByID", mock.Anything, "c-1").Return(campaign, nil)
	f.campaigns.On("Delete", mock.Anything, "c-1").Return(nil)

	err := f.svc.DeletePromotion(context.Background(), "c-1")
	require.NoError(t, err)

	v1 := f.variants.variants["v-1"]
	assert.False(t, v1.OnSales)
	assert.Zero(t, v1.DiscountPrice)

	f.campaigns.AssertExpectations(t)
}

func TestDeletePromotion_NotFound(t *testing.T) {
	f := newFixture(t)

	f.campaigns.On("GetByID", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("campaign", "missing"))

	err := f.svc.DeletePromotion(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
