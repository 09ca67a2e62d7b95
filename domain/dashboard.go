package domain

// DashboardSnapshot summarises stock and receivables across all records at
// one point in time. Totals come from a single store read, so the figures
// agree with each other. RemainingStock is not clamped; a negative value
// means more was sold than purchased and should be shown as-is.
type DashboardSnapshot struct {
	TotalPurchasedQty   float64 `json:"total_purchased_qty"`
	TotalSoldQty        float64 `json:"total_sold_qty"`
	RemainingStock      float64 `json:"remaining_stock"`
	TotalPurchaseAmount float64 `json:"total_purchase_amount"`
	TotalAmountReceived float64 `json:"total_amount_received"`
	TotalPendingAmount  float64 `json:"total_pending_amount"`

	RecentPurchases []Purchase `json:"recent_purchases"`
	RecentSales     []Sale     `json:"recent_sales"`
	RecentPayments  []Payment  `json:"recent_payments"`
}
