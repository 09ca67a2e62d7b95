package domain

// Payment is immutable once recorded. SaleID is a non-owning reference;
// listing code must tolerate a sale that no longer resolves.
type Payment struct {
	ID        string  `db:"id" json:"id"`
	SaleID    string  `db:"sale_id" json:"sale_id"`
	Date      string  `db:"date" json:"date"`
	Amount    float64 `db:"amount" json:"amount"`
	CreatedAt string  `db:"created_at" json:"created_at"`
}

// PaymentView is a Payment joined to its sale's display fields. Customer is
// "Unknown" when the referenced sale is missing.
type PaymentView struct {
	Payment
	Customer    string  `db:"customer" json:"customer"`
	SaleAmount  float64 `db:"sale_amount" json:"sale_amount"`
	SalePending float64 `db:"sale_pending" json:"sale_pending"`
}
