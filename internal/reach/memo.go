package reach

import (
	"context"
	"log/slog"
	"sync"
)

// Audience identifies one estimate target.
type Audience struct {
	Skills []string
	Region string
}

// Memo is a request-scoped estimate cache. It is created per request and
// passed explicitly through the call chain so the stage classifier stays
// pure and testable; it never outlives the request.
//
// Distinct audiences are fetched concurrently and awaited together; repeated
// audiences resolve to a single estimator call. Failed or zero estimates
// degrade to DefaultImpressionFloor, and every estimate is rounded to the
// nearest thousand.
type Memo struct {
	estimator Estimator

	mu        sync.Mutex
	estimates map[string]int
}

// NewMemo creates a request-scoped estimate memo.
func NewMemo(estimator Estimator) *Memo {
	return &Memo{
		estimator: estimator,
		estimates: make(map[string]int),
	}
}

// Prime fetches estimates for every distinct audience concurrently and
// stores them in the memo. Per-audience failures are logged and substituted
// with the impression floor rather than failing the batch.
func (m *Memo) Prime(ctx context.Context, audiences []Audience) {
	distinct := make(map[string]Audience)
	m.mu.Lock()
	for _, a := range audiences {
		k := Key(a.Skills, a.Region)
		if _, done := m.estimates[k]; done {
			continue
		}
		distinct[k] = a
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for k, a := range distinct {
		wg.Add(1)
		go func(key string, aud Audience) {
			defer wg.Done()
			n := m.fetch(ctx, aud)
			m.mu.Lock()
			m.estimates[key] = n
			m.mu.Unlock()
		}(k, a)
	}
	wg.Wait()
}

// Estimate returns the impression estimate for an audience, fetching it if
// the memo has not seen the audience yet.
func (m *Memo) Estimate(ctx context.Context, skills []string, region string) int {
	k := Key(skills, region)

	m.mu.Lock()
	if n, ok := m.estimates[k]; ok {
		m.mu.Unlock()
		return n
	}
	m.mu.Unlock()

	n := m.fetch(ctx, Audience{Skills: skills, Region: region})

	m.mu.Lock()
	m.estimates[k] = n
	m.mu.Unlock()
	return n
}

// fetch calls the estimator and applies the floor and rounding rules.
func (m *Memo) fetch(ctx context.Context, a Audience) int {
	n, err := m.estimator.EstimateImpressions(ctx, a.Skills, a.Region)
	if err != nil {
		slog.WarnContext(ctx, "reach estimate failed, using floor",
			"region", a.Region,
			"error", err)
		return DefaultImpressionFloor
	}
	if n <= 0 {
		return DefaultImpressionFloor
	}
	rounded := RoundImpressions(n)
	if rounded < DefaultImpressionFloor {
		return DefaultImpressionFloor
	}
	return rounded
}
