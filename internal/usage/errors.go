package usage

import "fmt"

// Limit type names surfaced in budget errors and rate/cost limited results.
const (
	LimitSessionWords = "session_words"
	LimitDailyWords   = "daily_words"
	LimitSessionCost  = "session_cost"
	LimitDailyCost    = "daily_cost"
)

// BudgetError reports that recording usage would cross a configured limit.
// The increment has been rolled back when this is returned.
type BudgetError struct {
	LimitType      string
	RemainingWords int
	RemainingCents int64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("usage budget exceeded: %s", e.LimitType)
}
