package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/vacradar/vacradar/internal/ai"
	"github.com/vacradar/vacradar/internal/util"
)

//go:embed prompt.md
var systemInstruction string

const defaultMaxLogLength = 200

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Classifier sends vacancy batches to Gemini under the fixed extraction
// instruction and parses the per-item verdicts out of the reply.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewClassifier wraps a content generator into the batch classifier.
// maxLogLength bounds prompt/response previews in debug logs.
func NewClassifier(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Classifier{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Classify serializes the batch as {"Vacancies": [{id, text}, ...]}, invokes
// the model and parses its verdicts. Transport failures surface as
// ai.ErrUnavailable; unparseable replies as ai.ErrMalformedOutput.
func (c *Classifier) Classify(ctx context.Context, items []ai.BatchItem) ([]ai.Verdict, error) {
	payload, err := json.Marshal(struct {
		Vacancies []ai.BatchItem `json:"Vacancies"`
	}{Vacancies: items})
	if err != nil {
		return nil, fmt.Errorf("marshal batch payload: %w", err)
	}

	c.logger.Debug("gemini classification request",
		zap.Int("batch_size", len(items)),
		zap.Int("payload_length", utf8.RuneCountInString(string(payload))),
		zap.String("payload_preview", util.TruncateForLog(string(payload), c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, systemInstruction, string(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}

	c.logger.Debug("gemini classification response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, c.maxLogLen)),
	)

	return ai.ParseVerdicts(raw)
}
