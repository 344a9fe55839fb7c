// Package service computes the read-side analytics views: order reports,
// demand forecasts, seasonal trends, and farmer performance. Every
// computation is a deterministic aggregation over an order snapshot;
// identical data always yields identical output. Results are memoized in
// Redis best-effort.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sproutmarket/internal/analytics/cache"
	analyticsmetrics "sproutmarket/internal/analytics/metrics"
	"sproutmarket/internal/analytics/models"
	"sproutmarket/internal/analytics/store"
	ordermodels "sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
	dErrors "sproutmarket/pkg/domain-errors"
	"sproutmarket/pkg/platform/sentinel"
)

// Service aggregates order history into derived views.
type Service struct {
	source  store.OrderSource
	cache   *cache.ResultCache
	metrics *analyticsmetrics.Metrics
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithCache(c *cache.ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *analyticsmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.logger = log }
}

// New creates the analytics aggregator.
func New(source store.OrderSource, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("order source is required")
	}
	svc := &Service{source: source, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// OrdersReport buckets matching orders by status and period. Cancelled
// orders appear in their status bucket but are excluded from revenue totals.
func (s *Service) OrdersReport(ctx context.Context, query models.Query) (*models.OrdersReport, error) {
	if err := validateQuery(&query); err != nil {
		return nil, err
	}
	s.metrics.IncrementQuery("orders")

	key := cacheKey("orders", query, nil)
	cached := &models.OrdersReport{}
	if s.cache.Get(ctx, key, cached) {
		s.metrics.IncrementCache("hit")
		return cached, nil
	}
	s.metrics.IncrementCache("miss")
	start := time.Now()
	defer s.metrics.ObserveQuery(start)

	orders, err := s.source.OrdersInWindow(ctx, query)
	if err != nil {
		return nil, translateSourceErr(err)
	}

	report := &models.OrdersReport{
		TotalRevenue: decimal.Zero,
		ByStatus:     make(map[ordermodels.Status]*models.StatusBucket),
	}
	periods := make(map[time.Time]*models.PeriodBucket)

	for _, order := range orders {
		report.TotalOrders++
		bucket := report.ByStatus[order.Status]
		if bucket == nil {
			bucket = &models.StatusBucket{Revenue: decimal.Zero}
			report.ByStatus[order.Status] = bucket
		}
		bucket.Count++
		bucket.Revenue = bucket.Revenue.Add(order.TotalAmount)

		if order.Status == ordermodels.StatusCancelled {
			continue
		}
		report.TotalRevenue = report.TotalRevenue.Add(order.TotalAmount)

		period := bucketStart(order.CreatedAt, query.Granularity)
		pb := periods[period]
		if pb == nil {
			pb = &models.PeriodBucket{Period: period, Revenue: decimal.Zero}
			periods[period] = pb
		}
		pb.Count++
		pb.Revenue = pb.Revenue.Add(order.TotalAmount)
	}

	report.ByPeriod = make([]models.PeriodBucket, 0, len(periods))
	for _, pb := range periods {
		report.ByPeriod = append(report.ByPeriod, *pb)
	}
	sort.Slice(report.ByPeriod, func(i, j int) bool {
		return report.ByPeriod[i].Period.Before(report.ByPeriod[j].Period)
	})

	s.cache.Set(ctx, key, report, cache.TTLOrdersReport)
	return report, nil
}

// DemandForecast extrapolates per-product demand over the query window.
// The forecast is a least squares extrapolation of the period series; with
// fewer than two periods of history it falls back to the moving average.
// Cancelled orders do not count as demand.
func (s *Service) DemandForecast(ctx context.Context, query models.Query, productID *id.ProductID) ([]models.ProductForecast, error) {
	if err := validateQuery(&query); err != nil {
		return nil, err
	}
	s.metrics.IncrementQuery("demand_forecast")

	key := cacheKey("demand", query, productID)
	var cached []models.ProductForecast
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.IncrementCache("hit")
		return cached, nil
	}
	s.metrics.IncrementCache("miss")
	start := time.Now()
	defer s.metrics.ObserveQuery(start)

	orders, err := s.source.OrdersInWindow(ctx, query)
	if err != nil {
		return nil, translateSourceErr(err)
	}

	// quantity per product per period
	demand := make(map[id.ProductID]map[time.Time]int)
	for _, order := range orders {
		if order.Status == ordermodels.StatusCancelled {
			continue
		}
		period := bucketStart(order.CreatedAt, query.Granularity)
		for _, item := range order.Items {
			if productID != nil && item.ProductID != *productID {
				continue
			}
			if demand[item.ProductID] == nil {
				demand[item.ProductID] = make(map[time.Time]int)
			}
			demand[item.ProductID][period] += item.Quantity
		}
	}

	forecasts := make([]models.ProductForecast, 0, len(demand))
	for pid, byPeriod := range demand {
		history := make([]models.DemandPoint, 0, len(byPeriod))
		for period, quantity := range byPeriod {
			history = append(history, models.DemandPoint{Period: period, Quantity: quantity})
		}
		sort.Slice(history, func(i, j int) bool {
			return history[i].Period.Before(history[j].Period)
		})

		forecast := models.ProductForecast{ProductID: pid, History: history}
		forecast.MovingAverage = movingAverage(history)
		forecast.TrendSlope, forecast.Forecast = linearForecast(history, forecast.MovingAverage)
		forecasts = append(forecasts, forecast)
	}
	sort.Slice(forecasts, func(i, j int) bool {
		return forecasts[i].ProductID.String() < forecasts[j].ProductID.String()
	})

	s.cache.Set(ctx, key, forecasts, cache.TTLDemandForecast)
	return forecasts, nil
}

// SeasonalTrends aggregates demand by calendar month across the window, so
// a multi-year window surfaces month-of-year seasonality.
func (s *Service) SeasonalTrends(ctx context.Context, query models.Query) ([]models.SeasonalPoint, error) {
	if err := validateQuery(&query); err != nil {
		return nil, err
	}
	s.metrics.IncrementQuery("seasonal_trends")

	key := cacheKey("seasonal", query, nil)
	var cached []models.SeasonalPoint
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.IncrementCache("hit")
		return cached, nil
	}
	s.metrics.IncrementCache("miss")
	start := time.Now()
	defer s.metrics.ObserveQuery(start)

	orders, err := s.source.OrdersInWindow(ctx, query)
	if err != nil {
		return nil, translateSourceErr(err)
	}

	months := make(map[time.Month]*models.SeasonalPoint)
	for _, order := range orders {
		if order.Status == ordermodels.StatusCancelled {
			continue
		}
		month := order.CreatedAt.UTC().Month()
		point := months[month]
		if point == nil {
			point = &models.SeasonalPoint{Month: month, Revenue: decimal.Zero}
			months[month] = point
		}
		point.Count++
		point.Revenue = point.Revenue.Add(order.TotalAmount)
		for _, item := range order.Items {
			point.Quantity += item.Quantity
		}
	}

	trends := make([]models.SeasonalPoint, 0, len(months))
	for _, point := range months {
		trends = append(trends, *point)
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Month < trends[j].Month })

	s.cache.Set(ctx, key, trends, cache.TTLSeasonalTrends)
	return trends, nil
}

// FarmerReport summarizes one farm's fulfillment: status distribution,
// cancellation rate, delivered revenue, and average hours from confirmation
// to delivery.
func (s *Service) FarmerReport(ctx context.Context, farmID id.FarmID, window models.Window) (*models.FarmerReport, error) {
	query := models.Query{Window: window, Granularity: models.GranularityMonth, FarmID: &farmID}
	if err := validateQuery(&query); err != nil {
		return nil, err
	}
	s.metrics.IncrementQuery("farmer")

	key := cacheKey("farmer", query, nil)
	cached := &models.FarmerReport{}
	if s.cache.Get(ctx, key, cached) {
		s.metrics.IncrementCache("hit")
		return cached, nil
	}
	s.metrics.IncrementCache("miss")
	start := time.Now()
	defer s.metrics.ObserveQuery(start)

	orders, err := s.source.OrdersInWindow(ctx, query)
	if err != nil {
		return nil, translateSourceErr(err)
	}

	report := &models.FarmerReport{
		FarmID:              farmID,
		StatusCounts:        make(map[ordermodels.Status]int),
		CancellationRate:    decimal.Zero,
		DeliveredRevenue:    decimal.Zero,
		AvgFulfillmentHours: decimal.Zero,
	}

	var fulfillmentHours decimal.Decimal
	fulfilled := 0
	for _, order := range orders {
		report.TotalOrders++
		report.StatusCounts[order.Status]++

		if order.Status == ordermodels.StatusDelivered {
			report.DeliveredRevenue = report.DeliveredRevenue.Add(order.TotalAmount)
			if hours, ok := fulfillmentDuration(order); ok {
				fulfillmentHours = fulfillmentHours.Add(hours)
				fulfilled++
			}
		}
	}

	if report.TotalOrders > 0 {
		report.CancellationRate = decimal.NewFromInt(int64(report.StatusCounts[ordermodels.StatusCancelled])).
			Div(decimal.NewFromInt(int64(report.TotalOrders)))
	}
	if fulfilled > 0 {
		report.AvgFulfillmentHours = fulfillmentHours.Div(decimal.NewFromInt(int64(fulfilled)))
	}

	s.cache.Set(ctx, key, report, cache.TTLFarmerReport)
	return report, nil
}

// fulfillmentDuration measures confirmed → delivered from the status
// history, in hours.
func fulfillmentDuration(order *ordermodels.Order) (decimal.Decimal, bool) {
	var confirmedAt, deliveredAt time.Time
	for _, change := range order.History {
		switch change.Status {
		case ordermodels.StatusConfirmed:
			if confirmedAt.IsZero() {
				confirmedAt = change.CreatedAt
			}
		case ordermodels.StatusDelivered:
			deliveredAt = change.CreatedAt
		}
	}
	if confirmedAt.IsZero() || deliveredAt.IsZero() || deliveredAt.Before(confirmedAt) {
		return decimal.Zero, false
	}
	hours := decimal.NewFromFloat(deliveredAt.Sub(confirmedAt).Hours())
	return hours, true
}

// movingAverage is the mean of the whole period series.
func movingAverage(history []models.DemandPoint) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, point := range history {
		sum = sum.Add(decimal.NewFromInt(int64(point.Quantity)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(history))))
}

// linearForecast fits y = a + b·x over the series indices via least squares
// and evaluates the line one step past the end. Under two points there is no
// trend; the forecast degrades to the moving average.
func linearForecast(history []models.DemandPoint, fallback decimal.Decimal) (slope, forecast decimal.Decimal) {
	n := len(history)
	if n < 2 {
		return decimal.Zero, fallback
	}

	var sumX, sumY, sumXY, sumXX int64
	for i, point := range history {
		x, y := int64(i), int64(point.Quantity)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	count := int64(n)
	denominator := count*sumXX - sumX*sumX
	if denominator == 0 {
		return decimal.Zero, fallback
	}

	slope = decimal.NewFromInt(count*sumXY - sumX*sumY).Div(decimal.NewFromInt(denominator))
	intercept := decimal.NewFromInt(sumY).Sub(slope.Mul(decimal.NewFromInt(sumX))).Div(decimal.NewFromInt(count))
	forecast = intercept.Add(slope.Mul(decimal.NewFromInt(count)))
	if forecast.IsNegative() {
		forecast = decimal.Zero
	}
	return slope, forecast
}

// bucketStart truncates t to the start of its period bucket, in UTC. Weeks
// start on Monday.
func bucketStart(t time.Time, granularity models.Granularity) time.Time {
	t = t.UTC()
	switch granularity {
	case models.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func validateQuery(query *models.Query) error {
	if query.Granularity == "" {
		query.Granularity = models.GranularityDay
	}
	if !query.Granularity.IsValid() {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown granularity %q", query.Granularity)
	}
	if query.Window.To.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "time window is required")
	}
	if !query.Window.From.Before(query.Window.To) {
		return dErrors.New(dErrors.CodeBadRequest, "window start must precede its end")
	}
	return nil
}

func cacheKey(view string, query models.Query, productID *id.ProductID) string {
	farm, buyer, product := "all", "all", "all"
	if query.FarmID != nil {
		farm = query.FarmID.String()
	}
	if query.BuyerID != nil {
		buyer = query.BuyerID.String()
	}
	if productID != nil {
		product = productID.String()
	}
	return fmt.Sprintf("%s:%d:%d:%s:%s:%s:%s",
		view, query.Window.From.Unix(), query.Window.To.Unix(), query.Granularity, farm, buyer, product)
}

func translateSourceErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "analytics query timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "analytics query failed: store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "analytics query failed")
	}
}
