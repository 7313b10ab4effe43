package vacancy

import "fmt"

// ValidationError reports malformed ingestion input. It is user-correctable
// and surfaced verbatim to the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// DuplicateError rejects an ingested text as a near-duplicate of an existing
// vacancy. It carries the computed similarity and the matched original text.
type DuplicateError struct {
	Similarity float64
	Matched    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("vacancy already exists (duplicate), similarity %.2f", e.Similarity)
}

// WriteError reports a storage fault while applying a single verdict. The
// affected record stays unclassified and is retried on a future cycle.
type WriteError struct {
	VacancyID int64
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("applying verdict for vacancy %d: %v", e.VacancyID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
