package models

// Usage accumulates token/cost accounting across one or more provider
// calls. Merge is field-wise addition, commutative and associative.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
	EstimatedCostCents       float64
}

// Merge returns the field-wise sum of u and other. Both operands are left
// unmodified.
func (u Usage) Merge(other Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + other.InputTokens,
		OutputTokens:             u.OutputTokens + other.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + other.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + other.CacheReadInputTokens,
		EstimatedCostCents:       u.EstimatedCostCents + other.EstimatedCostCents,
	}
}
