package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"

	"github.com/lib/pq"
)

// ErrDuplicateOrderNumber signals an order-number collision; the caller
// regenerates the number and retries.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

type orderRow struct {
	models.Order
	ShippingAddressJSON []byte `db:"shipping_address"`
	BillingAddressJSON  []byte `db:"billing_address"`
}

func (r *orderRow) toOrder() (*models.Order, error) {
	order := r.Order
	if err := json.Unmarshal(r.ShippingAddressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if err := json.Unmarshal(r.BillingAddressJSON, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode billing address: %w", err)
	}
	return &order, nil
}

type orderItemRow struct {
	models.OrderItem
	SnapshotJSON []byte `db:"product_snapshot"`
}

func (r *orderItemRow) toItem() (*models.OrderItem, error) {
	item := r.OrderItem
	if err := json.Unmarshal(r.SnapshotJSON, &item.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode product snapshot: %w", err)
	}
	return &item, nil
}

// PlaceOrder persists an order, its items with product snapshots, the
// conditional stock decrements and the cart clear in a single transaction.
// Any failure rolls back the whole placement.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_number, user_id, subtotal, tax_amount, shipping_amount,
			discount_amount, total_amount, status, payment_status, payment_method,
			shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.UserID, order.Subtotal, order.TaxAmount,
		order.ShippingAmount, order.DiscountAmount, order.TotalAmount,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		shippingJSON, billingJSON,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateOrderNumber
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		item := &items[i]
		item.OrderID = order.ID

		snapshotJSON, err := json.Marshal(item.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode product snapshot: %w", err)
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, quantity,
				unit_price, total_price, product_snapshot)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			item.OrderID, item.ProductID, item.VariantID, item.Quantity,
			item.UnitPrice, item.TotalPrice, snapshotJSON,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		// Conditional decrement: zero rows means another checkout took the
		// stock first, and the whole order rolls back.
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.Newf(apperr.CodeInsufficientStock,
				"insufficient stock for product %d", item.ProductID)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1", order.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toOrder()
}

// GetOrderByNumber retrieves an order by its human-readable order number
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE order_number = $1", orderNumber)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %s", orderNumber)
	}
	if err != nil {
		return nil, err
	}
	return row.toOrder()
}

// GetOrdersByUserID retrieves orders for a user, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return rowsToOrders(rows)
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM orders ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return rowsToOrders(rows)
}

func rowsToOrders(rows []orderRow) ([]models.Order, error) {
	orders := make([]models.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var rows []orderItemRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// UpdateOrderStatus updates fulfillment status, stamping shipped_at and
// delivered_at when those states are reached
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string, trackingNumber *string) error {
	query := `
		UPDATE orders SET
			status = $1,
			tracking_number = COALESCE($2, tracking_number),
			shipped_at = CASE WHEN $1 = 'shipped' THEN NOW() ELSE shipped_at END,
			delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
			updated_at = NOW()
		WHERE id = $3`
	_, err := s.db.ExecContext(ctx, query, status, trackingNumber, orderID)
	return err
}

// SetGatewayOrderID attaches a gateway order id to the order with the given
// order number
func (s *Store) SetGatewayOrderID(ctx context.Context, orderNumber, gatewayOrderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE order_number = $2",
		gatewayOrderID, orderNumber)
	return err
}

// MarkOrderPaid reconciles a captured payment into the matching order and
// reports whether the order actually transitioned. Re-applying the same
// capture matches zero rows, so callers can skip follow-up side effects.
func (s *Store) MarkOrderPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = $1,
			status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
			gateway_payment_id = $2,
			updated_at = NOW()
		WHERE gateway_order_id = $3 AND payment_status <> $1`,
		models.PaymentStatusPaid, gatewayPaymentID, gatewayOrderID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

// MarkPaymentFailed records a failed payment against the matching order
func (s *Store) MarkPaymentFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = $1,
			gateway_payment_id = $2,
			updated_at = NOW()
		WHERE gateway_order_id = $3`,
		models.PaymentStatusFailed, gatewayPaymentID, gatewayOrderID)
	return err
}

// MarkOrderRefunded records a refund against the order holding the payment
func (s *Store) MarkOrderRefunded(ctx context.Context, gatewayPaymentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = $1,
			status = $2,
			updated_at = NOW()
		WHERE gateway_payment_id = $3`,
		models.PaymentStatusRefunded, models.OrderStatusRefunded, gatewayPaymentID)
	return err
}
