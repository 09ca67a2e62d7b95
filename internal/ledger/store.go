package ledger

import (
	"context"
	"errors"

	"tradebook/m/domain"
)

// ErrNotFound is returned when a referenced sale does not exist.
var ErrNotFound = errors.New("sale not found")

// ErrInvalidAmount is returned for a non-positive payment amount.
var ErrInvalidAmount = errors.New("payment amount must be greater than zero")

// ErrValidation is returned for missing or out-of-range input fields.
// Nothing is persisted when it is returned.
var ErrValidation = errors.New("validation failed")

// ErrInconsistentState means a payment record was written but the matching
// sale update could not be completed or undone. It must never be reported as
// success; reconciliation tooling keys off this error.
var ErrInconsistentState = errors.New("payment recorded but sale update failed")

// Store is the persistent record store for purchases, sales and payments.
// List methods return newest date first, ties broken by insertion order.
//
// ApplyPayment is the one compound write: it persists the payment and adds
// its amount to the sale's payment_received in a single atomic step, so two
// concurrent payments against the same sale cannot lose an update. It returns
// ErrNotFound, persisting nothing, when the sale does not exist.
type Store interface {
	InsertPurchase(ctx context.Context, p *domain.Purchase) error
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)

	InsertSale(ctx context.Context, s *domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	// SetSalePayment overwrites payment_received and recomputes
	// pending_amount in the same write. Administrative corrections only; it
	// never creates a payment record.
	SetSalePayment(ctx context.Context, id string, received float64) (*domain.Sale, error)

	ApplyPayment(ctx context.Context, p *domain.Payment) (*domain.Sale, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	ListPaymentViews(ctx context.Context) ([]domain.PaymentView, error)

	// SnapshotAll reads all three collections as one consistent snapshot.
	SnapshotAll(ctx context.Context) ([]domain.Purchase, []domain.Sale, []domain.Payment, error)
}
