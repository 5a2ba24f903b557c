package domain

const (
	RecordIncome  = "income"
	RecordExpense = "expense"
)

type FinancialRecord struct {
	ID          int64   `db:"id" json:"id"`
	UserID      int64   `db:"user_id" json:"user_id"`
	Type        string  `db:"type" json:"type"`
	Amount      float64 `db:"amount" json:"amount"`
	Description string  `db:"description" json:"description"`
	CreatedAt   string  `db:"created_at" json:"created_at"`
}

type FinancialSummary struct {
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	NetProfit    float64 `json:"net_profit"`
}

// SummarizeFinances recomputes the totals from the full record set. There is
// no maintained running balance; callers pay O(n) per call.
func SummarizeFinances(records []FinancialRecord) FinancialSummary {
	var s FinancialSummary
	for _, r := range records {
		switch r.Type {
		case RecordIncome:
			s.TotalIncome += r.Amount
		case RecordExpense:
			s.TotalExpense += r.Amount
		}
	}
	s.NetProfit = s.TotalIncome - s.TotalExpense
	return s
}
