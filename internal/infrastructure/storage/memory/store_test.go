package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/domain"
	"consigna/internal/domain/catalog/product"
)

func TestRunInTransaction_RollbackRestoresSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Products()

	require.NoError(t, repo.Create(ctx, &product.Product{Name: "Anel", Barcode: "1", Stock: 3}))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, applied, err := repo.DecrementStock(ctx, 1, 2)
		require.NoError(t, err)
		require.True(t, applied)
		require.NoError(t, repo.Create(ctx, &product.Product{Name: "Brinco", Barcode: "2"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	exists, err := repo.ExistsByName(ctx, "Brinco")
	require.NoError(t, err)
	assert.False(t, exists)

	// Sequences roll back too.
	next, err := repo.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Products()
	require.NoError(t, repo.Create(ctx, &product.Product{Name: "Anel", Barcode: "1", Stock: 3}))

	err := s.RunSerializable(ctx, func(ctx context.Context) error {
		if err := s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, _, err := repo.IncrementStock(ctx, 1, 5)
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestDecrementStock_NeverNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Products()
	require.NoError(t, repo.Create(ctx, &product.Product{Name: "Anel", Barcode: "1", Stock: 10}))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
				_, _, err := repo.DecrementStock(ctx, 1, 1)
				return err
			})
		}()
	}
	wg.Wait()

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, p.Stock)

	_, applied, err := repo.DecrementStock(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	res := page(items, pageOf(2, 4))
	assert.Equal(t, []int{5}, res.Items)
	assert.EqualValues(t, 5, res.TotalCount)

	res = page(items, pageOf(2, 9))
	assert.Empty(t, res.Items)
}

func pageOf(limit, offset int) domain.Page { return domain.Page{Limit: limit, Offset: offset} }

func TestReadOnly_RejectsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Products()
	require.NoError(t, repo.Create(ctx, &product.Product{Name: "Anel", Barcode: "1", Stock: 3}))

	err := s.ReadOnly(ctx, func(ctx context.Context) error {
		p, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		_, _, err = repo.IncrementStock(ctx, 1, 1)
		return err
	})
	require.ErrorIs(t, err, errReadOnly)

	p, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestRead_OutsideTransactionSeesCommittedState(t *testing.T) {
	s := New()
	ctx := context.Background()
	repo := s.Products()
	require.NoError(t, repo.Create(ctx, &product.Product{Name: "Anel", Barcode: "1", Stock: 3}))

	decremented := make(chan struct{})
	checked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if _, _, err := repo.DecrementStock(ctx, 1, 2); err != nil {
				return err
			}
			inside, err := repo.GetByID(ctx, 1)
			if err != nil {
				return err
			}
			if inside.Stock != 1 {
				return errors.New("transaction does not see its own write")
			}
			close(decremented)
			<-checked
			return errors.New("insufficient stock on the next line")
		})
	}()

	<-decremented
	outside, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, outside.Stock)
	close(checked)

	require.Error(t, <-done)
	after, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock)
}
