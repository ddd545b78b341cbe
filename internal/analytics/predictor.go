// Package analytics projects when a product's stock will cross its
// low-stock threshold. The model is a linear average over a fixed sales
// window; seasonality and trend are out of scope.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLookbackDays is the sales history window used when the caller
// does not override it.
const DefaultLookbackDays = 30

// StockStatus is the read-only projection of a product's stock position.
type StockStatus struct {
	CurrentStock      int
	LowStockThreshold int
}

// ProductPort reads the stock position of a product.
type ProductPort interface {
	StockStatus(ctx context.Context, productID int64) (StockStatus, error)
}

// SalesPort sums units sold inside a window, as recorded by Sale movements
// in the stock adjustment log.
type SalesPort interface {
	SalesVolume(ctx context.Context, productID int64, from, to time.Time) (int, error)
}

// Prediction is the depletion forecast returned to the caller. DaysLeft is
// nil when no prediction could be made (no sales in the window).
type Prediction struct {
	Message           string   `json:"message"`
	PredictionDate    *string  `json:"predictionDate"`
	DaysLeft          *int     `json:"daysLeft"`
	AverageDailySales *float64 `json:"averageDailySales"`
}

// Service computes depletion predictions with read-through caching.
type Service struct {
	products ProductPort
	sales    SalesPort
	cache    *Cache
	group    singleflight.Group
	printer  *message.Printer
	now      func() time.Time
}

// NewService builds Service. cache may be nil, predictions are then
// computed on every call.
func NewService(products ProductPort, sales SalesPort, cache *Cache) *Service {
	return &Service{
		products: products,
		sales:    sales,
		cache:    cache,
		printer:  message.NewPrinter(language.English),
		now:      time.Now,
	}
}

// PredictDepletion forecasts when productID crosses its low-stock threshold
// based on the average sales rate over the last lookbackDays.
func (s *Service) PredictDepletion(ctx context.Context, productID int64, lookbackDays int) (Prediction, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	key := fmt.Sprintf("prediction:%d:%d", productID, lookbackDays)
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		if s.cache == nil {
			return s.compute(ctx, productID, lookbackDays)
		}
		cacheKey, err := s.cache.BuildKey(ctx, key)
		if err != nil {
			return Prediction{}, err
		}
		var prediction Prediction
		err = s.cache.FetchJSON(ctx, cacheKey, &prediction, func(ctx context.Context) (interface{}, error) {
			return s.compute(ctx, productID, lookbackDays)
		})
		return prediction, err
	})
	if err != nil {
		return Prediction{}, err
	}
	return result.(Prediction), nil
}

func (s *Service) compute(ctx context.Context, productID int64, lookbackDays int) (Prediction, error) {
	status, err := s.products.StockStatus(ctx, productID)
	if err != nil {
		return Prediction{}, err
	}

	if status.CurrentStock <= status.LowStockThreshold {
		zero := 0
		return Prediction{
			Message:  s.printer.Sprintf("Product is already at or below the low stock threshold (%d).", status.LowStockThreshold),
			DaysLeft: &zero,
		}, nil
	}

	now := s.now().UTC()
	totalSold, err := s.sales.SalesVolume(ctx, productID, now.AddDate(0, 0, -lookbackDays), now)
	if err != nil {
		return Prediction{}, err
	}
	if totalSold <= 0 {
		return Prediction{
			Message: s.printer.Sprintf("No sales recorded for this product in the last %d days. Cannot predict.", lookbackDays),
		}, nil
	}

	averageDailySales := float64(totalSold) / float64(lookbackDays)
	stockAboveThreshold := status.CurrentStock - status.LowStockThreshold
	daysLeft := int(math.Floor(float64(stockAboveThreshold) / averageDailySales))
	if daysLeft < 0 {
		// a strange division result reads as "reaches threshold immediately"
		daysLeft = 0
	}

	date := now.AddDate(0, 0, daysLeft).Format("2006-01-02")
	avgDisplay := math.Round(averageDailySales*100) / 100
	return Prediction{
		Message: s.printer.Sprintf("Based on average sales over the last %d days (%.2f/day), predicted to reach threshold (%d) in approximately %d days.",
			lookbackDays, averageDailySales, status.LowStockThreshold, daysLeft),
		PredictionDate:    &date,
		DaysLeft:          &daysLeft,
		AverageDailySales: &avgDisplay,
	}, nil
}
