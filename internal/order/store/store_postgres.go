package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sproutmarket/internal/order/models"
	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/platform/sentinel"
)

// PostgresStore persists orders in PostgreSQL. This store is pure I/O; the
// lifecycle rules (which transitions are legal, who may perform them) belong
// in the service. The one rule enforced here is the conditional status
// update, because only the database can arbitrate concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed order store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(fmt.Errorf("begin create order: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, farm_id, status, total_amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(order.ID), uuid.UUID(order.BuyerID), uuid.UUID(order.FarmID),
		string(order.Status), order.TotalAmount, order.Currency,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("insert order: %w", err))
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			uuid.New(), uuid.UUID(order.ID), uuid.UUID(item.ProductID),
			item.Quantity, item.UnitPrice, i, order.CreatedAt,
		)
		if err != nil {
			return translateErr(fmt.Errorf("insert order item: %w", err))
		}
	}

	for _, change := range order.History {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_status_history (id, order_id, status, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`,
			uuid.New(), uuid.UUID(order.ID), string(change.Status),
			uuid.UUID(change.ActorID), change.CreatedAt,
		)
		if err != nil {
			return translateErr(fmt.Errorf("insert status history: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit create order: %w", err))
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	order := &models.Order{}
	var orderUUID, buyerUUID, farmUUID uuid.UUID
	var status string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, farm_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, uuid.UUID(orderID)).Scan(
		&orderUUID, &buyerUUID, &farmUUID, &status,
		&order.TotalAmount, &order.Currency, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
		}
		return nil, translateErr(fmt.Errorf("get order: %w", err))
	}
	order.ID = id.OrderID(orderUUID)
	order.BuyerID = id.BuyerID(buyerUUID)
	order.FarmID = id.FarmID(farmUUID)
	order.Status = models.Status(status)

	items, err := s.loadItems(ctx, []id.OrderID{orderID})
	if err != nil {
		return nil, err
	}
	order.Items = items[orderID]

	if order.History, err = s.loadHistory(ctx, orderID); err != nil {
		return nil, err
	}
	if order.Tracking, err = s.loadTracking(ctx, orderID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID id.BuyerID, filter models.ListFilter) ([]*models.Order, error) {
	return s.list(ctx, "buyer_id", uuid.UUID(buyerID), filter)
}

func (s *PostgresStore) ListByFarm(ctx context.Context, farmID id.FarmID, filter models.ListFilter) ([]*models.Order, error) {
	return s.list(ctx, "farm_id", uuid.UUID(farmID), filter)
}

func (s *PostgresStore) list(ctx context.Context, ownerColumn string, owner uuid.UUID, filter models.ListFilter) ([]*models.Order, error) {
	query := `
		SELECT id, buyer_id, farm_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE ` + ownerColumn + ` = $1`
	args := []any{owner}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateErr(fmt.Errorf("list orders: %w", err))
	}
	defer rows.Close()

	var orders []*models.Order
	var orderIDs []id.OrderID
	for rows.Next() {
		order := &models.Order{}
		var orderUUID, buyerUUID, farmUUID uuid.UUID
		var status string
		if err := rows.Scan(
			&orderUUID, &buyerUUID, &farmUUID, &status,
			&order.TotalAmount, &order.Currency, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, translateErr(fmt.Errorf("scan order row: %w", err))
		}
		order.ID = id.OrderID(orderUUID)
		order.BuyerID = id.BuyerID(buyerUUID)
		order.FarmID = id.FarmID(farmUUID)
		order.Status = models.Status(status)
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(fmt.Errorf("iterate order rows: %w", err))
	}

	if len(orders) == 0 {
		return orders, nil
	}
	itemsByOrder, err := s.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = itemsByOrder[order.ID]
	}
	return orders, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, orderID id.OrderID, expected, next models.Status, actorID id.ActorID, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(fmt.Errorf("begin status update: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, uuid.UUID(orderID), string(expected), string(next), now)
	if err != nil {
		return translateErr(fmt.Errorf("update order status: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return translateErr(fmt.Errorf("status update rows affected: %w", err))
	}
	if affected == 0 {
		// Distinguish a missing order from a lost race.
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, uuid.UUID(orderID),
		).Scan(&exists)
		if err != nil {
			return translateErr(fmt.Errorf("check order existence: %w", err))
		}
		if !exists {
			return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("order %s no longer in status %s: %w", orderID, expected, sentinel.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, status, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), uuid.UUID(orderID), string(next), uuid.UUID(actorID), now)
	if err != nil {
		return translateErr(fmt.Errorf("insert status history: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit status update: %w", err))
	}
	return nil
}

func (s *PostgresStore) AddTracking(ctx context.Context, orderID id.OrderID, event models.TrackingEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(fmt.Errorf("begin add tracking: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the order row so a concurrent status change cannot slip a
	// tracking event into a terminal order.
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, uuid.UUID(orderID),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
		}
		return translateErr(fmt.Errorf("lock order for tracking: %w", err))
	}
	if !models.Status(status).AllowsTracking() {
		return fmt.Errorf("order %s is %s: %w", orderID, status, sentinel.ErrInvalidState)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_tracking (id, order_id, location, description, estimated_arrival, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.New(), uuid.UUID(orderID), event.Location, event.Description,
		event.EstimatedArrival, uuid.UUID(event.ActorID), event.CreatedAt,
	)
	if err != nil {
		return translateErr(fmt.Errorf("insert tracking event: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return translateErr(fmt.Errorf("commit add tracking: %w", err))
	}
	return nil
}

func (s *PostgresStore) loadItems(ctx context.Context, orderIDs []id.OrderID) (map[id.OrderID][]models.Item, error) {
	raw := make([]uuid.UUID, len(orderIDs))
	for i, orderID := range orderIDs {
		raw[i] = uuid.UUID(orderID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY position
	`, pq.Array(raw))
	if err != nil {
		return nil, translateErr(fmt.Errorf("load order items: %w", err))
	}
	defer rows.Close()

	items := make(map[id.OrderID][]models.Item, len(orderIDs))
	for rows.Next() {
		var orderUUID, productUUID uuid.UUID
		var item models.Item
		if err := rows.Scan(&orderUUID, &productUUID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, translateErr(fmt.Errorf("scan order item: %w", err))
		}
		item.ProductID = id.ProductID(productUUID)
		orderID := id.OrderID(orderUUID)
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateErr(fmt.Errorf("iterate order items: %w", err))
	}
	return items, nil
}

func (s *PostgresStore) loadHistory(ctx context.Context, orderID id.OrderID) ([]models.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, actor_id, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at
	`, uuid.UUID(orderID))
	if err != nil {
		return nil, translateErr(fmt.Errorf("load status history: %w", err))
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var change models.StatusChange
		var status string
		var actorUUID uuid.UUID
		if err := rows.Scan(&status, &actorUUID, &change.CreatedAt); err != nil {
			return nil, translateErr(fmt.Errorf("scan status history: %w", err))
		}
		change.Status = models.Status(status)
		change.ActorID = id.ActorID(actorUUID)
		history = append(history, change)
	}
	return history, rows.Err()
}

func (s *PostgresStore) loadTracking(ctx context.Context, orderID id.OrderID) ([]models.TrackingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, description, estimated_arrival, actor_id, created_at
		FROM delivery_tracking
		WHERE order_id = $1
		ORDER BY created_at
	`, uuid.UUID(orderID))
	if err != nil {
		return nil, translateErr(fmt.Errorf("load tracking: %w", err))
	}
	defer rows.Close()

	var tracking []models.TrackingEvent
	for rows.Next() {
		var event models.TrackingEvent
		var actorUUID uuid.UUID
		if err := rows.Scan(&event.Location, &event.Description, &event.EstimatedArrival, &actorUUID, &event.CreatedAt); err != nil {
			return nil, translateErr(fmt.Errorf("scan tracking event: %w", err))
		}
		event.ActorID = id.ActorID(actorUUID)
		tracking = append(tracking, event)
	}
	return tracking, rows.Err()
}

// translateErr maps driver failures onto sentinel errors while keeping the
// wrapped detail for logs.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", sentinel.ErrTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%w: %v", sentinel.ErrNotFound, err)
		case pqErr.Code.Class() == "08": // connection_exception
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
		}
	}
	return err
}
