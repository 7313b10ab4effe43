// Package ai defines the classifier boundary: the batch payload sent to the
// external model and the tagged verdicts parsed out of its reply.
package ai

import (
	"context"
	"errors"
)

// Placeholder markers for verdict fields the classifier did not provide.
const (
	// Unknown is stored for optional fields absent from a valid verdict.
	Unknown = "unknown"
	// NoLocation is stored for a missing location or the classifier's
	// "Не указано" sentinel.
	NoLocation = "-"
)

// ErrUnavailable reports a transport or protocol failure of the external
// classifier. The cycle aborts and the batch is retried on the next run.
var ErrUnavailable = errors.New("classifier unavailable")

// ErrMalformedOutput reports that the classifier reply could not be parsed as
// the expected structure. The cycle aborts with no partial application.
var ErrMalformedOutput = errors.New("classifier returned malformed output")

// BatchItem is one {id, text} pair of the classification request payload.
type BatchItem struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// VerdictKind discriminates the per-item classifier outcome.
type VerdictKind int

const (
	// VerdictUnrecognized marks an item that was not a well-formed verdict
	// object; it is skipped without aborting the cycle.
	VerdictUnrecognized VerdictKind = iota
	// VerdictNotAVacancy marks a text the classifier rejected outright.
	VerdictNotAVacancy
	// VerdictClassified carries a structured field set.
	VerdictClassified
)

// Fields is the structured extraction of a classified verdict. Salary bounds,
// currency and experience are opaque strings; absent values hold the Unknown
// placeholder by the time parsing is done.
type Fields struct {
	Category       string   `mapstructure:"job_category"`
	Subcategory    string   `mapstructure:"job_subcategory"`
	Company        string   `mapstructure:"company"`
	Location       string   `mapstructure:"location"`
	EmploymentType string   `mapstructure:"employment_type"`
	WorkFormat     string   `mapstructure:"work_format"`
	SalaryMin      string   `mapstructure:"salary_range_min"`
	SalaryMax      string   `mapstructure:"salary_range_max"`
	SalaryCurrency string   `mapstructure:"salary_currency"`
	Experience     string   `mapstructure:"experience_years_required"`
	Requirements   []string `mapstructure:"key_requirements"`
}

// Verdict is the per-item classifier outcome.
type Verdict struct {
	Kind   VerdictKind
	ID     int64
	Fields Fields
}

// Classifier is the external classification capability: given a batch of
// {id, text} pairs it returns best-effort per-item verdicts.
type Classifier interface {
	Classify(ctx context.Context, items []BatchItem) ([]Verdict, error)
}
