package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sproutmarket/internal/analytics/models"
	ordermodels "sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

// PostgresSource reads order snapshots for analytics. A single query per
// table keeps the snapshot consistent enough without explicit transactions;
// analytics tolerates staleness relative to in-flight writes.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed order source.
func NewPostgres(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) OrdersInWindow(ctx context.Context, query models.Query) ([]*ordermodels.Order, error) {
	sqlQuery := `
		SELECT id, buyer_id, farm_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE created_at >= $1 AND created_at < $2`
	args := []any{query.Window.From, query.Window.To}

	if query.FarmID != nil {
		args = append(args, uuid.UUID(*query.FarmID))
		sqlQuery += fmt.Sprintf(" AND farm_id = $%d", len(args))
	}
	if query.BuyerID != nil {
		args = append(args, uuid.UUID(*query.BuyerID))
		sqlQuery += fmt.Sprintf(" AND buyer_id = $%d", len(args))
	}
	sqlQuery += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, translateErr(fmt.Errorf("load analytics orders: %w", err))
	}
	defer rows.Close()

	var orders []*ordermodels.Order
	byID := make(map[id.OrderID]*ordermodels.Order)
	var orderIDs []uuid.UUID
	for rows.Next() {
		order := &ordermodels.Order{}
		var orderUUID, buyerUUID, farmUUID uuid.UUID
		var status string
		if err := rows.Scan(
			&orderUUID, &buyerUUID, &farmUUID, &status,
			&order.TotalAmount, &order.Currency, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, translateErr(fmt.Errorf("scan analytics order: %w", err))
		}
		order.ID = id.OrderID(orderUUID)
		order.BuyerID = id.BuyerID(buyerUUID)
		order.FarmID = id.FarmID(farmUUID)
		order.Status = ordermodels.Status(status)
		orders = append(orders, order)
		byID[order.ID] = order
		orderIDs = append(orderIDs, orderUUID)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(fmt.Errorf("iterate analytics orders: %w", err))
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := s.attachItems(ctx, byID, orderIDs); err != nil {
		return nil, err
	}
	if err := s.attachHistory(ctx, byID, orderIDs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *PostgresSource) attachItems(ctx context.Context, byID map[id.OrderID]*ordermodels.Order, orderIDs []uuid.UUID) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY position
	`, pq.Array(orderIDs))
	if err != nil {
		return translateErr(fmt.Errorf("load analytics items: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var orderUUID, productUUID uuid.UUID
		var item ordermodels.Item
		if err := rows.Scan(&orderUUID, &productUUID, &item.Quantity, &item.UnitPrice); err != nil {
			return translateErr(fmt.Errorf("scan analytics item: %w", err))
		}
		item.ProductID = id.ProductID(productUUID)
		if order, ok := byID[id.OrderID(orderUUID)]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}

func (s *PostgresSource) attachHistory(ctx context.Context, byID map[id.OrderID]*ordermodels.Order, orderIDs []uuid.UUID) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, status, actor_id, created_at
		FROM order_status_history
		WHERE order_id = ANY($1)
		ORDER BY created_at
	`, pq.Array(orderIDs))
	if err != nil {
		return translateErr(fmt.Errorf("load analytics history: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var orderUUID, actorUUID uuid.UUID
		var change ordermodels.StatusChange
		var status string
		if err := rows.Scan(&orderUUID, &status, &actorUUID, &change.CreatedAt); err != nil {
			return translateErr(fmt.Errorf("scan analytics history: %w", err))
		}
		change.Status = ordermodels.Status(status)
		change.ActorID = id.ActorID(actorUUID)
		if order, ok := byID[id.OrderID(orderUUID)]; ok {
			order.History = append(order.History, change)
		}
	}
	return rows.Err()
}

func translateErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", sentinel.ErrTimeout, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
