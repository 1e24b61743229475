package engine

import "github.com/flightwatch/flightwatch/internal/domain"

// HardMaxBatchSize is the protocol ceiling on codes per upstream
// request. Configured batch sizes are clamped to this regardless of
// configuration.
const HardMaxBatchSize = 15

// Batch is one upstream request: a non-empty list of codes for a
// single kind.
type Batch struct {
	Kind  domain.SubscriptionKind
	Codes []string
}

// Targets returns the query targets covered by this batch.
func (b Batch) Targets() []domain.QueryTarget {
	targets := make([]domain.QueryTarget, len(b.Codes))
	for i, code := range b.Codes {
		targets[i] = domain.QueryTarget{Kind: b.Kind, Code: code}
	}
	return targets
}

// PlanBatches splits each kind's unique codes into fixed-size batches.
// Kinds are visited in canonical order and codes keep their first-seen
// order, so the plan is deterministic for an unchanged subscription
// set.
func PlanBatches(g Grouping, sizePerKind map[domain.SubscriptionKind]int) []Batch {
	codesByKind := make(map[domain.SubscriptionKind][]string)
	for _, target := range g.Targets {
		codesByKind[target.Kind] = append(codesByKind[target.Kind], target.Code)
	}

	var batches []Batch
	for _, kind := range domain.Kinds {
		codes := codesByKind[kind]
		if len(codes) == 0 {
			continue
		}
		size := sizePerKind[kind]
		if size <= 0 || size > HardMaxBatchSize {
			size = HardMaxBatchSize
		}
		for start := 0; start < len(codes); start += size {
			end := start + size
			if end > len(codes) {
				end = len(codes)
			}
			batches = append(batches, Batch{Kind: kind, Codes: codes[start:end]})
		}
	}
	return batches
}
