package model

// ChargeDetails is one recurring-charge record, typically sourced from a
// card or billing feed. The detector compares the sum of recurring charges
// against each source's reported monthly expenses.
type ChargeDetails struct {
	MerchantName string  `json:"merchant_name"`
	Amount       float64 `json:"amount"`
	Recurring    bool    `json:"recurring"`
	Category     string  `json:"category,omitempty"`
}

// RecurringTotal sums the amounts of all charges flagged recurring.
func RecurringTotal(charges []ChargeDetails) float64 {
	var total float64
	for _, c := range charges {
		if c.Recurring {
			total += c.Amount
		}
	}
	return total
}
