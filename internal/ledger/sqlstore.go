package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tradebook/m/domain"
)

// SQLStore is the SQLite-backed Store.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const saleColumns = `id, customer, date, quantity, rate, amount, payment_received, pending_amount, created_at`

func (s *SQLStore) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO purchases (id, supplier, date, quantity, rate, amount) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Supplier, p.Date, p.Quantity, p.Rate, p.Amount)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *SQLStore) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	purchases := []domain.Purchase{}
	err := s.db.SelectContext(ctx, &purchases, `SELECT id, supplier, date, quantity, rate, amount, created_at FROM purchases ORDER BY date DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}

func (s *SQLStore) InsertSale(ctx context.Context, sale *domain.Sale) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sales (id, customer, date, quantity, rate, amount, payment_received, pending_amount) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.Customer, sale.Date, sale.Quantity, sale.Rate, sale.Amount, sale.PaymentReceived, sale.PendingAmount)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &sale, nil
}

func (s *SQLStore) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales := []domain.Sale{}
	err := s.db.SelectContext(ctx, &sales, `SELECT `+saleColumns+` FROM sales ORDER BY date DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// SetSalePayment overwrites payment_received; pending_amount is recomputed in
// the same statement so the invariant cannot be skipped.
func (s *SQLStore) SetSalePayment(ctx context.Context, id string, received float64) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sales SET payment_received = ?, pending_amount = ROUND(amount - ?, 2) WHERE id = ?`,
		received, received, id)
	if err != nil {
		return nil, fmt.Errorf("set sale payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set sale payment: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetSale(ctx, id)
}

// ApplyPayment inserts the payment and bumps the sale inside one database
// transaction. The increment happens in SQL against the stored value, not a
// value read earlier, so concurrent payments against the same sale both land.
func (s *SQLStore) ApplyPayment(ctx context.Context, p *domain.Payment) (*domain.Sale, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply payment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE sales SET payment_received = ROUND(payment_received + ?, 2), pending_amount = ROUND(amount - (payment_received + ?), 2) WHERE id = ?`,
		p.Amount, p.Amount, p.SaleID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("apply payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("apply payment: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO payments (id, sale_id, date, amount) VALUES (?, ?, ?, ?)`,
		p.ID, p.SaleID, p.Date, p.Amount); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, fmt.Errorf("%w: insert failed (%v) and rollback failed (%v)", ErrInconsistentState, err, rbErr)
		}
		return nil, fmt.Errorf("apply payment: %w", err)
	}

	var sale domain.Sale
	if err := tx.GetContext(ctx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, p.SaleID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("apply payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit failed (%v)", ErrInconsistentState, err)
	}
	return &sale, nil
}

func (s *SQLStore) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	err := s.db.SelectContext(ctx, &payments, `SELECT id, sale_id, date, amount, created_at FROM payments ORDER BY date DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListPaymentViews left-joins sales so a payment whose sale was removed
// out-of-band still lists, with the customer shown as Unknown.
func (s *SQLStore) ListPaymentViews(ctx context.Context) ([]domain.PaymentView, error) {
	views := []domain.PaymentView{}
	err := s.db.SelectContext(ctx, &views, `SELECT p.id, p.sale_id, p.date, p.amount, p.created_at,
                COALESCE(s.customer, 'Unknown') AS customer,
                COALESCE(s.amount, 0) AS sale_amount,
                COALESCE(s.pending_amount, 0) AS sale_pending
                FROM payments p
                LEFT JOIN sales s ON s.id = p.sale_id
                ORDER BY p.date DESC, p.rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list payment views: %w", err)
	}
	return views, nil
}

// SnapshotAll reads the three collections inside one transaction so the
// dashboard's stock and receivables figures come from the same instant.
func (s *SQLStore) SnapshotAll(ctx context.Context) ([]domain.Purchase, []domain.Sale, []domain.Payment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	defer tx.Rollback()

	purchases := []domain.Purchase{}
	if err := tx.SelectContext(ctx, &purchases, `SELECT id, supplier, date, quantity, rate, amount, created_at FROM purchases ORDER BY date DESC, rowid ASC`); err != nil {
		return nil, nil, nil, fmt.Errorf("snapshot purchases: %w", err)
	}
	sales := []domain.Sale{}
	if err := tx.SelectContext(ctx, &sales, `SELECT `+saleColumns+` FROM sales ORDER BY date DESC, rowid ASC`); err != nil {
		return nil, nil, nil, fmt.Errorf("snapshot sales: %w", err)
	}
	payments := []domain.Payment{}
	if err := tx.SelectContext(ctx, &payments, `SELECT id, sale_id, date, amount, created_at FROM payments ORDER BY date DESC, rowid ASC`); err != nil {
		return nil, nil, nil, fmt.Errorf("snapshot payments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	return purchases, sales, payments, nil
}
