package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/guisedstore/storefront/internal/infrastructure/search"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProductRepo struct {
	products map[string]*models.Product
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, pkgerrors.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int, error) {
	return nil, 0, nil
}

func (f *fakeProductRepo) ListAll(ctx context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProductRepo) Create(ctx context.Context, p *models.Product) error { return nil }
func (f *fakeProductRepo) Update(ctx context.Context, p *models.Product) error { return nil }
func (f *fakeProductRepo) Delete(ctx context.Context, id string) error         { return nil }

func (f *fakeProductRepo) Categories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

type fakeIndex struct {
	indexed  []models.SearchDocument
	deleted  []string
	resynced []models.SearchDocument
}

func (f *fakeIndex) IndexProduct(ctx context.Context, doc models.SearchDocument) error {
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndex) DeleteProduct(ctx context.Context, productID string) error {
	f.deleted = append(f.deleted, productID)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, limit int) ([]search.Hit, int, error) {
	return nil, 0, nil
}

func (f *fakeIndex) Resync(ctx context.Context, docs []models.SearchDocument) error {
	f.resynced = docs
	return nil
}

func TestIndexSyncWorker_Handle(t *testing.T) {
	ctx := context.Background()

	keyboard := &models.Product{
		ID:     "product-1",
		Name:   "Keyboard",
		Status: models.ProductPublished,
		Price:  decimal.NewFromInt(50),
	}

	t.Run("IndexFetchesCurrentState", func(t *testing.T) {
		repo := &fakeProductRepo{products: map[string]*models.Product{"product-1": keyboard}}
		index := &fakeIndex{}
		w := NewIndexSyncWorker(nil, repo, index)

		err := w.Handle(ctx, models.IndexSyncMessage{Action: models.IndexActionIndex, ProductID: "product-1"})
		require.NoError(t, err)

		require.Len(t, index.indexed, 1)
		assert.Equal(t, "product-1", index.indexed[0].ID)
		assert.Equal(t, "Keyboard", index.indexed[0].Name)
	})

	t.Run("ProductGoneBeforeConsume", func(t *testing.T) {
		repo := &fakeProductRepo{products: map[string]*models.Product{}}
		index := &fakeIndex{}
		w := NewIndexSyncWorker(nil, repo, index)

		// not an error: the matching delete message cleans the index
		err := w.Handle(ctx, models.IndexSyncMessage{Action: models.IndexActionUpdate, ProductID: "product-missing"})
		assert.NoError(t, err)
		assert.Empty(t, index.indexed)
	})

	t.Run("Delete", func(t *testing.T) {
		index := &fakeIndex{}
		w := NewIndexSyncWorker(nil, &fakeProductRepo{}, index)

		err := w.Handle(ctx, models.IndexSyncMessage{Action: models.IndexActionDelete, ProductID: "product-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"product-1"}, index.deleted)
	})

	t.Run("UnknownAction", func(t *testing.T) {
		index := &fakeIndex{}
		w := NewIndexSyncWorker(nil, &fakeProductRepo{}, index)

		err := w.Handle(ctx, models.IndexSyncMessage{Action: "rename", ProductID: "product-1"})
		assert.NoError(t, err)
		assert.Empty(t, index.indexed)
		assert.Empty(t, index.deleted)
	})
}

func TestIndexSyncWorker_Run_RecoversFromFetchErrors(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{
		{err: errors.New("broker unreachable")},
		{msg: kafkago.Message{Value: []byte(`{"action":"delete","product_id":"product-1"}`)}},
	}}
	index := &fakeIndex{}

	w := NewIndexSyncWorker(reader, &fakeProductRepo{}, index)
	w.fetchBackoff = 0

	w.Run(context.Background())

	assert.Equal(t, []string{"product-1"}, index.deleted)
	require.Len(t, reader.committed, 1)
}

func TestIndexSyncWorker_Resync(t *testing.T) {
	repo := &fakeProductRepo{products: map[string]*models.Product{
		"product-1": {ID: "product-1", Name: "Keyboard", Price: decimal.NewFromInt(50)},
		"product-2": {ID: "product-2", Name: "Mouse", Price: decimal.NewFromInt(25)},
	}}
	index := &fakeIndex{}
	w := NewIndexSyncWorker(nil, repo, index)

	err := w.Resync(context.Background())
	require.NoError(t, err)
	assert.Len(t, index.resynced, 2)
}
