package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradebook/m/domain"
)

const dateLayout = "2006-01-02"

// recentLimit is how many records of each kind the dashboard shows.
const recentLimit = 5

// Service provides the ledger operations the presentation layer calls:
// recording purchases, sales and payments, and deriving stock and
// receivables figures. All monetary writes go through this package so the
// pending-amount invariant is enforced in one place.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new Service. A nil logger falls back to a no-op.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// round2 rounds to 2 decimal places. Every stored monetary value passes
// through here, so derived fields never drift past currency precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validDate(date string) error {
	if strings.TrimSpace(date) == "" {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be in YYYY-MM-DD format", ErrValidation)
	}
	return nil
}

// CreatePurchase records a purchase from a supplier. Purchases are immutable
// once created; there is no update or delete path.
func (s *Service) CreatePurchase(ctx context.Context, supplier, date string, quantity, rate, amount float64) (*domain.Purchase, error) {
	if strings.TrimSpace(supplier) == "" {
		return nil, fmt.Errorf("%w: supplier is required", ErrValidation)
	}
	if err := validDate(date); err != nil {
		return nil, err
	}
	if quantity < 0 || rate < 0 || amount < 0 {
		return nil, fmt.Errorf("%w: quantity, rate and amount must not be negative", ErrValidation)
	}

	purchase := &domain.Purchase{
		ID:       uuid.NewString(),
		Supplier: supplier,
		Date:     date,
		Quantity: quantity,
		Rate:     rate,
		Amount:   round2(amount),
	}
	if err := s.store.InsertPurchase(ctx, purchase); err != nil {
		s.logger.Error("failed to save purchase", zap.String("supplier", supplier), zap.Error(err))
		return nil, err
	}

	s.logger.Info("purchase recorded", zap.String("purchase_id", purchase.ID), zap.Float64("amount", purchase.Amount))
	return purchase, nil
}

// ListPurchases returns all purchases, newest date first.
func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.store.ListPurchases(ctx)
}

// CreateSale records a sale to a customer. paymentReceived may be non-zero
// when part of the price was collected up front; pending is derived at
// create time and kept in step by every later write.
func (s *Service) CreateSale(ctx context.Context, customer, date string, quantity, rate, amount, paymentReceived float64) (*domain.Sale, error) {
	if strings.TrimSpace(customer) == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if err := validDate(date); err != nil {
		return nil, err
	}
	if quantity < 0 || rate < 0 || amount < 0 {
		return nil, fmt.Errorf("%w: quantity, rate and amount must not be negative", ErrValidation)
	}
	if paymentReceived < 0 {
		return nil, fmt.Errorf("%w: payment received must not be negative", ErrValidation)
	}

	sale := &domain.Sale{
		ID:              uuid.NewString(),
		Customer:        customer,
		Date:            date,
		Quantity:        quantity,
		Rate:            rate,
		Amount:          round2(amount),
		PaymentReceived: round2(paymentReceived),
	}
	sale.PendingAmount = round2(sale.Amount - sale.PaymentReceived)

	if err := s.store.InsertSale(ctx, sale); err != nil {
		s.logger.Error("failed to save sale", zap.String("customer", customer), zap.Error(err))
		return nil, err
	}

	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.Float64("amount", sale.Amount),
		zap.Float64("pending", sale.PendingAmount))
	return sale, nil
}

// ListSales returns all sales, newest date first.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.store.ListSales(ctx)
}

// SetSalePaymentReceived overwrites a sale's payment_received with the given
// value. This is an administrative correction tool: it does NOT create a
// payment record, and it is the only absolute-overwrite path. Anything that
// claims to record an actual payment must go through RecordPayment instead,
// so the payment history stays an accurate audit trail.
func (s *Service) SetSalePaymentReceived(ctx context.Context, saleID string, value float64) (*domain.Sale, error) {
	if value < 0 {
		return nil, fmt.Errorf("%w: payment received must not be negative", ErrValidation)
	}
	sale, err := s.store.SetSalePayment(ctx, saleID, round2(value))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to overwrite sale payment", zap.String("sale_id", saleID), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("sale payment overwritten",
		zap.String("sale_id", saleID),
		zap.Float64("payment_received", sale.PaymentReceived),
		zap.Float64("pending", sale.PendingAmount))
	return sale, nil
}

// RecordPayment records a payment against a sale and adds its amount to the
// sale's payment_received. Each call is a distinct payment event: calling
// twice with the same values records two payments and counts both. On
// success a payment record exists and the sale's pending amount reflects it;
// on any failure nothing is persisted, except the store-reported
// ErrInconsistentState case, which is surfaced as-is for reconciliation.
func (s *Service) RecordPayment(ctx context.Context, saleID, date string, amount float64) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := validDate(date); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:     uuid.NewString(),
		SaleID: saleID,
		Date:   date,
		Amount: round2(amount),
	}
	sale, err := s.store.ApplyPayment(ctx, payment)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to apply payment", zap.String("sale_id", saleID), zap.Float64("amount", amount), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("sale_id", saleID),
		zap.Float64("amount", payment.Amount),
		zap.Float64("sale_pending", sale.PendingAmount))
	return payment, nil
}

// ListPayments returns all payments newest date first, each resolved to its
// sale's display fields. A payment whose sale is missing still lists, with
// the customer shown as Unknown.
func (s *Service) ListPayments(ctx context.Context) ([]domain.PaymentView, error) {
	return s.store.ListPaymentViews(ctx)
}

// DashboardSnapshot aggregates all purchases, sales and payments into the
// dashboard totals. The three collections are read as one store snapshot so
// stock and receivables figures agree with each other.
func (s *Service) DashboardSnapshot(ctx context.Context) (*domain.DashboardSnapshot, error) {
	purchases, sales, payments, err := s.store.SnapshotAll(ctx)
	if err != nil {
		s.logger.Error("failed to read dashboard snapshot", zap.Error(err))
		return nil, err
	}

	snap := &domain.DashboardSnapshot{
		RecentPurchases: head(purchases, recentLimit),
		RecentSales:     head(sales, recentLimit),
		RecentPayments:  head(payments, recentLimit),
	}
	for _, p := range purchases {
		snap.TotalPurchasedQty += p.Quantity
		snap.TotalPurchaseAmount += p.Amount
	}
	for _, sale := range sales {
		snap.TotalSoldQty += sale.Quantity
		snap.TotalAmountReceived += sale.PaymentReceived
		snap.TotalPendingAmount += sale.PendingAmount
	}
	snap.RemainingStock = snap.TotalPurchasedQty - snap.TotalSoldQty
	snap.TotalPurchaseAmount = round2(snap.TotalPurchaseAmount)
	snap.TotalAmountReceived = round2(snap.TotalAmountReceived)
	snap.TotalPendingAmount = round2(snap.TotalPendingAmount)
	return snap, nil
}

func head[T any](records []T, n int) []T {
	if len(records) < n {
		n = len(records)
	}
	return records[:n]
}
