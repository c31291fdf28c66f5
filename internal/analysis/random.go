package analysis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

const (
	randomHealthy    = "Your heart is functioning well. Continue with your healthy habits."
	randomConcerning = "Some metrics need attention. Consider consulting with your healthcare provider."
	randomCritical   = "Critical readings detected. Please seek immediate medical attention."
)

// RandomAnalyzer is a placeholder that ignores the samples and draws
// healthy 70%, concerning 20%, critical 10%.
type RandomAnalyzer struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewRandomAnalyzer(seed int64) *RandomAnalyzer {
	return NewRandomAnalyzerWithSource(rand.New(rand.NewSource(seed)))
}

// NewRandomAnalyzerWithSource uses rnd for every draw.
func NewRandomAnalyzerWithSource(rnd *rand.Rand) *RandomAnalyzer {
	return &RandomAnalyzer{rnd: rnd, now: time.Now}
}

func (r *RandomAnalyzer) Analyze(ctx context.Context, _ int64, _ []store.HealthSample) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	draw := r.rnd.Float64()
	r.mu.Unlock()

	status, rec := drawStatus(draw)
	return Result{Status: status, Recommendation: rec, Timestamp: r.now().UTC()}, nil
}

func drawStatus(draw float64) (vitals.Status, string) {
	switch {
	case draw < 0.7:
		return vitals.StatusHealthy, randomHealthy
	case draw < 0.9:
		return vitals.StatusConcerning, randomConcerning
	default:
		return vitals.StatusCritical, randomCritical
	}
}
