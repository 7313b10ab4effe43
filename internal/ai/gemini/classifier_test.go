package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vacradar/vacradar/internal/ai"
)

type stubGenerator struct {
	response   string
	err        error
	lastSystem string
	lastMsg    string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMsg = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestClassifySendsBatchPayload(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"Vacancies\": [{\"id\": 5, \"not_a_vacancy\": true}]}\n```"}
	c := NewClassifier(stub, zap.NewNop(), 0)

	items := []ai.BatchItem{
		{ID: 5, Text: "не вакансия"},
		{ID: 6, Text: "Go разработчик, Обязанности: ..."},
	}

	verdicts, err := c.Classify(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(verdicts) != 1 || verdicts[0].Kind != ai.VerdictNotAVacancy || verdicts[0].ID != 5 {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}

	if stub.lastSystem == "" || !strings.Contains(stub.lastSystem, "JOB DATA EXTRACTION") {
		t.Fatal("expected embedded system instruction to be sent")
	}
	if !strings.Contains(stub.lastMsg, `"Vacancies"`) {
		t.Fatalf("expected wrapped payload, got %q", stub.lastMsg)
	}
	if !strings.Contains(stub.lastMsg, `"id":5`) || !strings.Contains(stub.lastMsg, `"id":6`) {
		t.Fatalf("expected both batch items in payload, got %q", stub.lastMsg)
	}
}

func TestClassifyWrapsTransportFailure(t *testing.T) {
	stub := &stubGenerator{err: errors.New("connection refused")}
	c := NewClassifier(stub, zap.NewNop(), 0)

	_, err := c.Classify(context.Background(), []ai.BatchItem{{ID: 1, Text: "text"}})
	if !errors.Is(err, ai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyReportsMalformedOutput(t *testing.T) {
	stub := &stubGenerator{response: "I could not process this batch, sorry."}
	c := NewClassifier(stub, zap.NewNop(), 0)

	_, err := c.Classify(context.Background(), []ai.BatchItem{{ID: 1, Text: "text"}})
	if !errors.Is(err, ai.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}
