package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yolda/internal/domain"
	"yolda/internal/order"

	"go.uber.org/zap"
)

// OrderRepository persists orders and their status records. The status
// mutators are single conditional UPDATEs keyed on the expected current
// status, which is what makes the claim contract atomic under sqlite.
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, logger *zap.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// CreateOrder inserts the order row and its initiated status record in one
// transaction so no order ever exists without a status.
func (r *OrderRepository) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			kind, passenger_id, from_region_id, from_district_id,
			to_region_id, to_district_id, passengers, departure_time,
			package_type, package_size, package_weight, package_description,
			receiver_name, receiver_phone, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		req.Kind, req.PassengerID, req.FromRegionID, req.FromDistrictID,
		req.ToRegionID, req.ToDistrictID, req.Passengers, req.DepartureTime,
		req.PackageType, req.PackageSize, req.PackageWeight, req.PackageDescription,
		req.ReceiverName, req.ReceiverPhone, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_status (order_id, status) VALUES (?, ?)`,
		orderID, domain.StateInitiated)
	if err != nil {
		r.logger.Error("Failed to create order status", zap.Error(err), zap.Int64("order_id", orderID))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Info("Order created",
		zap.Int64("order_id", orderID),
		zap.String("kind", string(req.Kind)),
		zap.String("passenger_id", req.PassengerID))

	return r.GetOrder(ctx, orderID)
}

const orderSelect = `
	SELECT o.id, o.kind, o.passenger_id, o.driver_id,
		   o.from_region_id, o.from_district_id, o.to_region_id, o.to_district_id,
		   fr.name, fd.name, tr.name, td.name,
		   o.passengers, o.departure_time,
		   o.package_type, o.package_size, o.package_weight, o.package_description,
		   o.receiver_name, o.receiver_phone,
		   o.channel_message_id, o.created_at,
		   s.status, s.actor_id, s.updated_at
	FROM orders o
	JOIN regions fr ON fr.id = o.from_region_id
	JOIN districts fd ON fd.id = o.from_district_id
	JOIN regions tr ON tr.id = o.to_region_id
	JOIN districts td ON td.id = o.to_district_id
	JOIN order_status s ON s.order_id = o.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{Status: &domain.OrderStatus{}}
	var (
		driverID      sql.NullString
		departureTime sql.NullTime
		packageWeight sql.NullFloat64
		messageID     sql.NullInt64
		actorID       sql.NullString
	)

	err := row.Scan(
		&o.ID, &o.Kind, &o.PassengerID, &driverID,
		&o.FromRegionID, &o.FromDistrictID, &o.ToRegionID, &o.ToDistrictID,
		&o.FromRegion, &o.FromDistrict, &o.ToRegion, &o.ToDistrict,
		&o.Passengers, &departureTime,
		&o.PackageType, &o.PackageSize, &packageWeight, &o.PackageDescription,
		&o.ReceiverName, &o.ReceiverPhone,
		&messageID, &o.CreatedAt,
		&o.Status.State, &actorID, &o.Status.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status.OrderID = o.ID
	if driverID.Valid {
		o.DriverID = &driverID.String
	}
	if departureTime.Valid {
		o.DepartureTime = &departureTime.Time
	}
	if packageWeight.Valid {
		o.PackageWeight = &packageWeight.Float64
	}
	if messageID.Valid {
		o.ChannelMessageID = &messageID.Int64
	}
	if actorID.Valid {
		o.Status.ActorID = &actorID.String
	}
	return o, nil
}

// GetOrder loads one order with resolved route names and its status.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = ?`, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, order.ErrNotFound
		}
		r.logger.Error("Failed to get order", zap.Error(err), zap.Int64("order_id", orderID))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// GetStatus loads the bare status record.
func (r *OrderRepository) GetStatus(ctx context.Context, orderID int64) (*domain.OrderStatus, error) {
	status := &domain.OrderStatus{}
	var actorID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT order_id, status, actor_id, updated_at FROM order_status WHERE order_id = ?`,
		orderID).Scan(&status.OrderID, &status.State, &actorID, &status.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, order.ErrNoStatus
		}
		r.logger.Error("Failed to get order status", zap.Error(err), zap.Int64("order_id", orderID))
		return nil, fmt.Errorf("failed to get order status: %w", err)
	}

	if actorID.Valid {
		status.ActorID = &actorID.String
	}
	return status, nil
}

// ClaimInitiated is the atomic claim: the conditional UPDATE succeeds for
// exactly one of any number of concurrent drivers. The winning claim also
// records the driver on the order row.
func (r *OrderRepository) ClaimInitiated(ctx context.Context, orderID int64, actorID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to claim order: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE order_status SET status = ?, actor_id = ? WHERE order_id = ? AND status = ?`,
		domain.StateProcessing, actorID, orderID, domain.StateInitiated)
	if err != nil {
		r.logger.Error("Failed to claim order", zap.Error(err), zap.Int64("order_id", orderID))
		return false, fmt.Errorf("failed to claim order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim order: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET driver_id = ? WHERE id = ?`, actorID, orderID); err != nil {
		r.logger.Error("Failed to assign driver", zap.Error(err), zap.Int64("order_id", orderID))
		return false, fmt.Errorf("failed to claim order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to claim order: %w", err)
	}
	return true, nil
}

// ResolveFrom performs the conditional status transition from -> to.
func (r *OrderRepository) ResolveFrom(ctx context.Context, orderID int64, from, to domain.State) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE order_status SET status = ? WHERE order_id = ? AND status = ?`,
		to, orderID, from)
	if err != nil {
		r.logger.Error("Failed to resolve order",
			zap.Error(err), zap.Int64("order_id", orderID),
			zap.String("from", string(from)), zap.String("to", string(to)))
		return false, fmt.Errorf("failed to resolve order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to resolve order: %w", err)
	}
	return rows == 1, nil
}

// RevertProcessing releases a stalled claim: status back to initiated, the
// claiming actor cleared from both records so the next driver starts clean.
func (r *OrderRepository) RevertProcessing(ctx context.Context, orderID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to revert order: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE order_status SET status = ?, actor_id = NULL WHERE order_id = ? AND status = ?`,
		domain.StateInitiated, orderID, domain.StateProcessing)
	if err != nil {
		r.logger.Error("Failed to revert order", zap.Error(err), zap.Int64("order_id", orderID))
		return false, fmt.Errorf("failed to revert order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revert order: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET driver_id = NULL WHERE id = ?`, orderID); err != nil {
		r.logger.Error("Failed to clear driver", zap.Error(err), zap.Int64("order_id", orderID))
		return false, fmt.Errorf("failed to revert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to revert order: %w", err)
	}
	return true, nil
}

// SetChannelMessageID records (or clears, with nil) the channel
// announcement message id.
func (r *OrderRepository) SetChannelMessageID(ctx context.Context, orderID int64, messageID *int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET channel_message_id = ? WHERE id = ?`, messageID, orderID)
	if err != nil {
		r.logger.Error("Failed to set channel message id", zap.Error(err), zap.Int64("order_id", orderID))
		return fmt.Errorf("failed to set channel message id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set channel message id: %w", err)
	}
	if rows == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListOrdersByState returns all orders in the given state, oldest first.
// The recovery sweep uses it to rebuild timers after a restart.
func (r *OrderRepository) ListOrdersByState(ctx context.Context, state domain.State) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` WHERE s.status = ? ORDER BY o.created_at`, state)
	if err != nil {
		r.logger.Error("Failed to list orders by state", zap.Error(err), zap.String("state", string(state)))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListUserOrders returns a page of the user's order history, newest first,
// covering orders they placed and orders they drove. The second return
// value is the total count for pagination.
func (r *OrderRepository) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE passenger_id = ? OR driver_id = ?`,
		userID, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count user orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		orderSelect+` WHERE o.passenger_id = ? OR o.driver_id = ?
		ORDER BY o.created_at DESC LIMIT ? OFFSET ?`,
		userID, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list user orders", zap.Error(err), zap.String("user_id", userID))
		return nil, 0, fmt.Errorf("failed to list user orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// GetStatistics aggregates order counts for the admin panel and the
// monitoring endpoint. User totals are filled in by the caller.
func (r *OrderRepository) GetStatistics(ctx context.Context) (*domain.OrderStatistics, error) {
	stats := &domain.OrderStatistics{ByState: make(map[domain.State]int64)}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			   COUNT(CASE WHEN kind = 'TRIP' THEN 1 END),
			   COUNT(CASE WHEN kind = 'DELIVERY' THEN 1 END),
			   COUNT(CASE WHEN created_at >= datetime('now', 'start of day') THEN 1 END),
			   COUNT(CASE WHEN created_at >= datetime('now', '-7 days') THEN 1 END)
		FROM orders`).Scan(
		&stats.TotalOrders, &stats.TotalTrips, &stats.TotalDelivery,
		&stats.TodayOrders, &stats.WeeklyOrders)
	if err != nil {
		r.logger.Error("Failed to get order statistics", zap.Error(err))
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM order_status GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state domain.State
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to get statistics: %w", err)
		}
		stats.ByState[state] = count
	}
	return stats, rows.Err()
}
