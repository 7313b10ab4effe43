package vacancy

import "time"

// Record is a stored vacancy. The text and source are immutable after
// creation; the only lifecycle transitions are unclassified -> classified
// (an analysis is attached) and unclassified -> removed (the classifier
// decided the text is not a vacancy).
type Record struct {
	ID         int64
	Text       string
	Source     string
	Area       string // reserved, never written by the pipeline
	Classified bool
	CreatedAt  time.Time
}

// Analysis is the structured extraction attached to a classified vacancy.
// Category and Subcategory are natural keys into the taxonomy; Requirements
// are requirement-tag names scoped to the category.
type Analysis struct {
	VacancyID      int64
	Category       string
	Subcategory    string
	Company        string
	Location       string
	EmploymentType string
	WorkFormat     string
	SalaryMin      string
	SalaryMax      string
	SalaryCurrency string
	Experience     string
	Requirements   []string
}
