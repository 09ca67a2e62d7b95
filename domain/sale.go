package domain

// Sale carries both what the customer owes (Amount) and what has been
// collected so far. PendingAmount is stored, not derived on read, and must
// equal Amount - PaymentReceived after every write. Overpayment pushes it
// negative; that is intentional.
type Sale struct {
	ID              string  `db:"id" json:"id"`
	Customer        string  `db:"customer" json:"customer"`
	Date            string  `db:"date" json:"date"`
	Quantity        float64 `db:"quantity" json:"quantity"`
	Rate            float64 `db:"rate" json:"rate"`
	Amount          float64 `db:"amount" json:"amount"`
	PaymentReceived float64 `db:"payment_received" json:"payment_received"`
	PendingAmount   float64 `db:"pending_amount" json:"pending_amount"`
	CreatedAt       string  `db:"created_at" json:"created_at"`
}
