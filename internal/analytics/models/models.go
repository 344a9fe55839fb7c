// Package models defines the read-side views the analytics aggregator
// computes. Everything here is derived data; nothing is persisted.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	ordermodels "sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
)

// Granularity selects the time bucket for period aggregations.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// Window bounds a query in time. From is inclusive, To exclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// Query narrows an analytics computation. Nil filters match everything.
type Query struct {
	Window      Window
	Granularity Granularity
	FarmID      *id.FarmID
	BuyerID     *id.BuyerID
}

// StatusBucket aggregates orders sharing one status.
type StatusBucket struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// PeriodBucket aggregates orders falling in one time bucket.
type PeriodBucket struct {
	Period  time.Time       `json:"period"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// OrdersReport is the order analytics view: totals plus status and period
// breakdowns.
type OrdersReport struct {
	TotalOrders  int                                   `json:"totalOrders"`
	TotalRevenue decimal.Decimal                       `json:"totalRevenue"`
	ByStatus     map[ordermodels.Status]*StatusBucket  `json:"byStatus"`
	ByPeriod     []PeriodBucket                        `json:"byPeriod"`
}

// DemandPoint is the quantity of one product ordered in one period.
type DemandPoint struct {
	Period   time.Time `json:"period"`
	Quantity int       `json:"quantity"`
}

// ProductForecast extrapolates a product's demand from its period history.
// The numbers are deterministic aggregations: a moving average and a least
// squares trend line, never a trained model.
type ProductForecast struct {
	ProductID     id.ProductID    `json:"productId"`
	History       []DemandPoint   `json:"history"`
	MovingAverage decimal.Decimal `json:"movingAverage"`
	TrendSlope    decimal.Decimal `json:"trendSlope"`
	Forecast      decimal.Decimal `json:"forecast"`
}

// SeasonalPoint aggregates orders by calendar month across years.
type SeasonalPoint struct {
	Month    time.Month      `json:"month"`
	Count    int             `json:"count"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// FarmerReport summarizes one farm's fulfillment performance.
type FarmerReport struct {
	FarmID              id.FarmID                      `json:"farmId"`
	StatusCounts        map[ordermodels.Status]int     `json:"statusCounts"`
	TotalOrders         int                            `json:"totalOrders"`
	CancellationRate    decimal.Decimal                `json:"cancellationRate"`
	DeliveredRevenue    decimal.Decimal                `json:"deliveredRevenue"`
	AvgFulfillmentHours decimal.Decimal                `json:"avgFulfillmentHours"`
}
