package domain

type Purchase struct {
	ID        string  `db:"id" json:"id"`
	Supplier  string  `db:"supplier" json:"supplier"`
	Date      string  `db:"date" json:"date"`
	Quantity  float64 `db:"quantity" json:"quantity"`
	Rate      float64 `db:"rate" json:"rate"`
	Amount    float64 `db:"amount" json:"amount"`
	CreatedAt string  `db:"created_at" json:"created_at"`
}
