package ledger

import (
	"context"
	"sort"
	"sync"

	"tradebook/m/domain"
)

// MemStore is an in-memory Store used by tests. Slices keep insertion order;
// list results are sorted stably by date so ties keep that order. All methods
// take the one mutex, which also makes ApplyPayment atomic.
type MemStore struct {
	mu        sync.Mutex
	purchases []domain.Purchase
	sales     []domain.Sale
	saleIdx   map[string]int
	payments  []domain.Payment
}

func NewMemStore() *MemStore {
	return &MemStore{saleIdx: map[string]int{}}
}

func (m *MemStore) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases = append(m.purchases, *p)
	return nil
}

func (m *MemStore) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Purchase, len(m.purchases))
	copy(out, m.purchases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *MemStore) InsertSale(ctx context.Context, s *domain.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saleIdx[s.ID] = len(m.sales)
	m.sales = append(m.sales, *s)
	return nil
}

func (m *MemStore) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.saleIdx[id]
	if !ok {
		return nil, ErrNotFound
	}
	sale := m.sales[i]
	return &sale, nil
}

func (m *MemStore) ListSales(ctx context.Context) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Sale, len(m.sales))
	copy(out, m.sales)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *MemStore) SetSalePayment(ctx context.Context, id string, received float64) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.saleIdx[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.sales[i].PaymentReceived = received
	m.sales[i].PendingAmount = round2(m.sales[i].Amount - received)
	sale := m.sales[i]
	return &sale, nil
}

func (m *MemStore) ApplyPayment(ctx context.Context, p *domain.Payment) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.saleIdx[p.SaleID]
	if !ok {
		return nil, ErrNotFound
	}
	m.payments = append(m.payments, *p)
	m.sales[i].PaymentReceived = round2(m.sales[i].PaymentReceived + p.Amount)
	m.sales[i].PendingAmount = round2(m.sales[i].Amount - m.sales[i].PaymentReceived)
	sale := m.sales[i]
	return &sale, nil
}

func (m *MemStore) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Payment, len(m.payments))
	copy(out, m.payments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (m *MemStore) ListPaymentViews(ctx context.Context) ([]domain.PaymentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payments := make([]domain.Payment, len(m.payments))
	copy(payments, m.payments)
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].Date > payments[j].Date })
	views := make([]domain.PaymentView, 0, len(payments))
	for _, p := range payments {
		view := domain.PaymentView{Payment: p, Customer: "Unknown"}
		if i, ok := m.saleIdx[p.SaleID]; ok {
			view.Customer = m.sales[i].Customer
			view.SaleAmount = m.sales[i].Amount
			view.SalePending = m.sales[i].PendingAmount
		}
		views = append(views, view)
	}
	return views, nil
}

// SnapshotAll holds the lock across all three reads, so the snapshot is
// consistent in the same way the SQL store's read transaction is.
func (m *MemStore) SnapshotAll(ctx context.Context) ([]domain.Purchase, []domain.Sale, []domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purchases := make([]domain.Purchase, len(m.purchases))
	copy(purchases, m.purchases)
	sort.SliceStable(purchases, func(i, j int) bool { return purchases[i].Date > purchases[j].Date })
	sales := make([]domain.Sale, len(m.sales))
	copy(sales, m.sales)
	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Date > sales[j].Date })
	payments := make([]domain.Payment, len(m.payments))
	copy(payments, m.payments)
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].Date > payments[j].Date })
	return purchases, sales, payments, nil
}

// DeleteSale removes a sale out-of-band. No service operation deletes
// anything; tests use this to produce a dangling payment reference.
func (m *MemStore) DeleteSale(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.saleIdx[id]
	if !ok {
		return
	}
	m.sales = append(m.sales[:i], m.sales[i+1:]...)
	delete(m.saleIdx, id)
	for sid, j := range m.saleIdx {
		if j > i {
			m.saleIdx[sid] = j - 1
		}
	}
}
