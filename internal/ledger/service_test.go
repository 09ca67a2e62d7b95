package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tradebook/m/domain"
)

func newTestService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	return NewService(store, zaptest.NewLogger(t)), store
}

func TestCreatePurchaseValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, "", "2024-01-10", 10, 5, 50)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePurchase(ctx, "Acme", "", 10, 5, 50)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePurchase(ctx, "Acme", "10-01-2024", 10, 5, 50)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreatePurchase(ctx, "Acme", "2024-01-10", -1, 5, 50)
	assert.ErrorIs(t, err, ErrValidation)

	purchases, err := svc.ListPurchases(ctx)
	require.NoError(t, err)
	assert.Empty(t, purchases, "failed validation must persist nothing")
}

func TestCreateSaleComputesPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 40, 15, 600, 0)
	require.NoError(t, err)
	assert.Equal(t, 600.0, sale.PendingAmount)

	upfront, err := svc.CreateSale(ctx, "Carol", "2024-01-13", 10, 10, 100, 25)
	require.NoError(t, err)
	assert.Equal(t, 75.0, upfront.PendingAmount)
}

func TestPendingInvariantAfterEveryMutation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 40, 15, 600, 0)
	require.NoError(t, err)

	checkInvariant := func(s *domain.Sale) {
		t.Helper()
		assert.Equal(t, round2(s.Amount-s.PaymentReceived), s.PendingAmount)
	}
	checkInvariant(sale)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-13", 123.45)
	require.NoError(t, err)
	updated, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	checkInvariant(updated)

	overwritten, err := svc.SetSalePaymentReceived(ctx, sale.ID, 200)
	require.NoError(t, err)
	checkInvariant(overwritten)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-14", 0.05)
	require.NoError(t, err)
	updated, err = svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	checkInvariant(updated)
}

func TestRecordPaymentCumulative(t *testing.T) {
	ctx := context.Background()
	for name, amounts := range map[string][]float64{
		"forward":  {30, 20},
		"reversed": {20, 30},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newTestService(t)
			sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
			require.NoError(t, err)

			for _, amount := range amounts {
				_, err := svc.RecordPayment(ctx, sale.ID, "2024-01-13", amount)
				require.NoError(t, err)
			}

			updated, err := svc.store.GetSale(ctx, sale.ID)
			require.NoError(t, err)
			assert.Equal(t, 50.0, updated.PaymentReceived)
			assert.Equal(t, 50.0, updated.PendingAmount)
		})
	}
}

// Recording the same logical payment twice must double-count: each call is a
// distinct payment event, not a retry of the first.
func TestRecordPaymentNotIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-13", 25)
	require.NoError(t, err)
	first, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, first.PaymentReceived)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-13", 25)
	require.NoError(t, err)
	second, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, second.PaymentReceived, "identical payment must count again")

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestRecordPaymentInvalidAmount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
	require.NoError(t, err)

	for _, amount := range []float64{0, -10} {
		_, err := svc.RecordPayment(ctx, sale.ID, "2024-01-13", amount)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	unchanged, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, unchanged.PaymentReceived)
	assert.Equal(t, 100.0, unchanged.PendingAmount)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestRecordPaymentUnknownSale(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, "no-such-sale", "2024-01-13", 50)
	assert.ErrorIs(t, err, ErrNotFound)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments, "a failed payment must not leave an orphan record")
}

func TestOverpaymentGoesNegative(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-13", 150)
	require.NoError(t, err)

	updated, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, -50.0, updated.PendingAmount, "overpayment is tracked, not hidden")
}

func TestSetSalePaymentReceived(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
	require.NoError(t, err)

	updated, err := svc.SetSalePaymentReceived(ctx, sale.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, 60.0, updated.PaymentReceived)
	assert.Equal(t, 40.0, updated.PendingAmount)

	// Corrections overwrite, they do not add, and they leave no payment
	// record behind.
	updated, err = svc.SetSalePaymentReceived(ctx, sale.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, updated.PaymentReceived)
	assert.Equal(t, 90.0, updated.PendingAmount)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, err = svc.SetSalePaymentReceived(ctx, "no-such-sale", 10)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetSalePaymentReceived(ctx, sale.ID, -5)
	assert.ErrorIs(t, err, ErrValidation)
}

// The concrete end-to-end scenario: one purchase, one sale, one payment.
func TestDashboardScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, "Acme", "2024-01-10", 100, 10, 1000)
	require.NoError(t, err)

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 40, 15, 600, 0)
	require.NoError(t, err)
	assert.Equal(t, 600.0, sale.PendingAmount)

	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-15", 250)
	require.NoError(t, err)

	updated, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.0, updated.PaymentReceived)
	assert.Equal(t, 350.0, updated.PendingAmount)

	snap, err := svc.DashboardSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.TotalPurchasedQty)
	assert.Equal(t, 40.0, snap.TotalSoldQty)
	assert.Equal(t, 60.0, snap.RemainingStock)
	assert.Equal(t, 1000.0, snap.TotalPurchaseAmount)
	assert.Equal(t, 250.0, snap.TotalAmountReceived)
	assert.Equal(t, 350.0, snap.TotalPendingAmount)
	assert.Len(t, snap.RecentPurchases, 1)
	assert.Len(t, snap.RecentSales, 1)
	assert.Len(t, snap.RecentPayments, 1)
}

func TestDashboardNegativeStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, "Acme", "2024-01-10", 10, 10, 100)
	require.NoError(t, err)
	_, err = svc.CreateSale(ctx, "Bob", "2024-01-12", 25, 15, 375, 0)
	require.NoError(t, err)

	snap, err := svc.DashboardSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, -15.0, snap.RemainingStock, "negative stock surfaces a data-entry error, do not clamp")
}

func TestDashboardRecentFiveNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	dates := []string{"2024-01-01", "2024-01-03", "2024-01-02", "2024-01-03", "2024-01-05", "2024-01-04", "2024-01-06"}
	for _, d := range dates {
		_, err := svc.CreatePurchase(ctx, "Acme", d, 1, 1, 1)
		require.NoError(t, err)
	}

	snap, err := svc.DashboardSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.RecentPurchases, 5)

	got := make([]string, len(snap.RecentPurchases))
	for i, p := range snap.RecentPurchases {
		got[i] = p.Date
	}
	// Newest date first; the two 2024-01-03 entries keep insertion order.
	assert.Equal(t, []string{"2024-01-06", "2024-01-05", "2024-01-04", "2024-01-03", "2024-01-03"}, got)
}

func TestListPaymentsResolvesSale(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 100, 0)
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, sale.ID, "2024-01-13", 40)
	require.NoError(t, err)

	views, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Bob", views[0].Customer)
	assert.Equal(t, 100.0, views[0].SaleAmount)
	assert.Equal(t, 60.0, views[0].SalePending)

	// A sale removed out-of-band leaves its payments listable, not fatal.
	store.DeleteSale(sale.ID)
	views, err = svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Unknown", views[0].Customer)
}

// failingApplyStore simulates a store whose payment write ends in an
// unrecoverable state, e.g. a commit failure after the payment insert.
type failingApplyStore struct {
	Store
	applyErr error
}

func (s *failingApplyStore) ApplyPayment(ctx context.Context, p *domain.Payment) (*domain.Sale, error) {
	return nil, s.applyErr
}

// Inconsistent state must reach the caller as exactly that: not success, not
// a generic failure it could be mistaken for.
func TestRecordPaymentSurfacesInconsistentState(t *testing.T) {
	store := &failingApplyStore{
		Store:    NewMemStore(),
		applyErr: fmt.Errorf("%w: commit failed (disk I/O error)", ErrInconsistentState),
	}
	svc := NewService(store, zaptest.NewLogger(t))

	payment, err := svc.RecordPayment(context.Background(), "sale-1", "2024-01-13", 50)
	require.Error(t, err)
	assert.Nil(t, payment)
	assert.ErrorIs(t, err, ErrInconsistentState)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// Sentinels must survive wrapping by a store implementation.
func TestRecordPaymentWrappedNotFound(t *testing.T) {
	store := &failingApplyStore{
		Store:    NewMemStore(),
		applyErr: fmt.Errorf("apply payment: %w", ErrNotFound),
	}
	svc := NewService(store, zaptest.NewLogger(t))

	_, err := svc.RecordPayment(context.Background(), "sale-1", "2024-01-13", 50)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentPaymentsNoLostUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sale, err := svc.CreateSale(ctx, "Bob", "2024-01-12", 10, 10, 1000, 0)
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(ctx, sale.ID, "2024-01-13", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	updated, err := svc.store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(workers), updated.PaymentReceived, "every concurrent payment must land")
	assert.Equal(t, 1000.0-float64(workers), updated.PendingAmount)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, workers)
}
