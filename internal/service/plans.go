package service

// Plan is a balance top-up option. Amounts are in RUB.
type Plan struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Tokens float64 `json:"tokens"`
	Amount float64 `json:"amount"`
}

var balancePlans = []Plan{
	{Code: "trial", Label: "Trial: 2 tokens", Tokens: 2, Amount: 120},
	{Code: "base", Label: "Base: 12 tokens", Tokens: 12, Amount: 470},
	{Code: "neuro", Label: "Neuro: 30 tokens", Tokens: 30, Amount: 900},
	{Code: "vip", Label: "VIP: 120 tokens", Tokens: 120, Amount: 3400},
	{Code: "top", Label: "Top: 600 tokens", Tokens: 600, Amount: 16000},
}

// Plans returns the top-up catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(balancePlans))
	copy(out, balancePlans)
	return out
}

// LookupPlan finds a plan by its code.
func LookupPlan(code string) (Plan, bool) {
	for _, p := range balancePlans {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}
