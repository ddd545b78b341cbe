package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shopledger/shopledger/internal/stock"
)

type fakeProducts struct {
	statuses map[int64]StockStatus
}

func (f *fakeProducts) StockStatus(_ context.Context, productID int64) (StockStatus, error) {
	status, ok := f.statuses[productID]
	if !ok {
		return StockStatus{}, stock.ErrProductNotFound
	}
	return status, nil
}

type fakeSales struct {
	volumes map[int64]int
	calls   int
}

func (f *fakeSales) SalesVolume(_ context.Context, productID int64, _, _ time.Time) (int, error) {
	f.calls++
	return f.volumes[productID], nil
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(products *fakeProducts, sales *fakeSales, cache *Cache) *Service {
	svc := NewService(products, sales, cache)
	svc.now = fixedNow
	return svc
}

func TestPredictDepletionLinearRate(t *testing.T) {
	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 10, LowStockThreshold: 5},
	}}
	sales := &fakeSales{volumes: map[int64]int{7: 30}}
	svc := newTestService(products, sales, nil)

	prediction, err := svc.PredictDepletion(context.Background(), 7, 30)
	require.NoError(t, err)

	require.NotNil(t, prediction.DaysLeft)
	require.Equal(t, 5, *prediction.DaysLeft)
	require.NotNil(t, prediction.AverageDailySales)
	require.InDelta(t, 1.0, *prediction.AverageDailySales, 0.001)
	require.NotNil(t, prediction.PredictionDate)
	require.Equal(t, "2026-03-06", *prediction.PredictionDate)
	require.Contains(t, prediction.Message, "approximately 5 days")
}

func TestPredictDepletionFlooredDays(t *testing.T) {
	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 12, LowStockThreshold: 5},
	}}
	// 45 units over 30 days gives 1.5/day, 7 above threshold -> 4.66 -> 4.
	sales := &fakeSales{volumes: map[int64]int{7: 45}}
	svc := newTestService(products, sales, nil)

	prediction, err := svc.PredictDepletion(context.Background(), 7, 30)
	require.NoError(t, err)
	require.NotNil(t, prediction.DaysLeft)
	require.Equal(t, 4, *prediction.DaysLeft)
}

func TestPredictDepletionAlreadyBelowThreshold(t *testing.T) {
	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 3, LowStockThreshold: 5},
	}}
	sales := &fakeSales{volumes: map[int64]int{7: 100}}
	svc := newTestService(products, sales, nil)

	prediction, err := svc.PredictDepletion(context.Background(), 7, 30)
	require.NoError(t, err)

	require.NotNil(t, prediction.DaysLeft)
	require.Equal(t, 0, *prediction.DaysLeft)
	require.Nil(t, prediction.PredictionDate)
	require.Nil(t, prediction.AverageDailySales)
	require.Contains(t, prediction.Message, "already at or below")
	// No window scan when the threshold is already crossed.
	require.Zero(t, sales.calls)
}

func TestPredictDepletionNoSalesHistory(t *testing.T) {
	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 10, LowStockThreshold: 5},
	}}
	sales := &fakeSales{volumes: map[int64]int{}}
	svc := newTestService(products, sales, nil)

	prediction, err := svc.PredictDepletion(context.Background(), 7, 30)
	require.NoError(t, err)

	require.Nil(t, prediction.DaysLeft)
	require.Nil(t, prediction.PredictionDate)
	require.Nil(t, prediction.AverageDailySales)
	require.Contains(t, prediction.Message, "Cannot predict")
}

func TestPredictDepletionUnknownProduct(t *testing.T) {
	svc := newTestService(&fakeProducts{statuses: map[int64]StockStatus{}}, &fakeSales{}, nil)

	_, err := svc.PredictDepletion(context.Background(), 99, 30)
	require.ErrorIs(t, err, stock.ErrProductNotFound)
}

func TestPredictDepletionDefaultsLookback(t *testing.T) {
	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 10, LowStockThreshold: 5},
	}}
	sales := &fakeSales{volumes: map[int64]int{7: 30}}
	svc := newTestService(products, sales, nil)

	prediction, err := svc.PredictDepletion(context.Background(), 7, 0)
	require.NoError(t, err)
	require.NotNil(t, prediction.AverageDailySales)
	require.InDelta(t, 1.0, *prediction.AverageDailySales, 0.001)
}

func TestPredictDepletionCachesUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := &fakeProducts{statuses: map[int64]StockStatus{
		7: {CurrentStock: 10, LowStockThreshold: 5},
	}}
	sales := &fakeSales{volumes: map[int64]int{7: 30}}
	cache := NewCache(client, time.Minute)
	svc := newTestService(products, sales, cache)

	ctx := context.Background()
	first, err := svc.PredictDepletion(ctx, 7, 30)
	require.NoError(t, err)
	require.Equal(t, 1, sales.calls)

	// Second call is served from the cache.
	second, err := svc.PredictDepletion(ctx, 7, 30)
	require.NoError(t, err)
	require.Equal(t, 1, sales.calls)
	require.Equal(t, first, second)

	// Bumping the version orphans the cached entry.
	require.NoError(t, cache.Bump(ctx))
	_, err = svc.PredictDepletion(ctx, 7, 30)
	require.NoError(t, err)
	require.Equal(t, 2, sales.calls)
}
