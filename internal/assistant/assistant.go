package assistant

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowscope/internal/apperr"
)

// Responder answers a free-text question from the dashboard chat.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

// CannedResponses are the demo replies of CannedResponder.
var CannedResponses = []string{
	"I've analyzed your latest ECG data. Your heart rhythm appears normal with consistent intervals between beats.",
	"Your blood oxygen levels are excellent. Maintaining levels above 95% indicates healthy lung function.",
	"Based on your recent health data, I recommend maintaining your current exercise routine and continuing to monitor your blood pressure.",
	"Your heart rate variability is within healthy parameters, suggesting good autonomic nervous system balance.",
	"I notice your respiratory rate occasionally increases during the night. This could be related to sleep quality.",
	"Your recovery rate has improved by 15% over the last month, indicating better cardiovascular fitness.",
}

// CannedResponder ignores the question and returns a random canned reply.
type CannedResponder struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCannedResponder(rnd *rand.Rand) *CannedResponder {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &CannedResponder{rnd: rnd}
}

func (c *CannedResponder) Reply(ctx context.Context, message string) (string, error) {
	if err := checkMessage(message); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	i := c.rnd.Intn(len(CannedResponses))
	c.mu.Unlock()
	return CannedResponses[i], nil
}

func checkMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return apperr.Invalid("Invalid chat message",
			apperr.FieldError{Field: "message", Message: "is required"})
	}
	return nil
}

// Config selects and configures the responder.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New returns an AnthropicResponder when an API key is configured and the
// canned responder otherwise.
func New(cfg Config, logger *zap.Logger) Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		logger.Info("assistant using canned responses")
		return NewCannedResponder(nil)
	}
	logger.Info("assistant using anthropic", zap.String("model", cfg.Model))
	return NewAnthropicResponder(cfg, logger)
}
