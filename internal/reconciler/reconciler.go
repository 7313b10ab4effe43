// Package reconciler drains batches of unclassified vacancies through the
// external classifier and applies the per-item verdicts.
package reconciler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vacradar/vacradar/internal/ai"
	"github.com/vacradar/vacradar/internal/vacancy"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	Unclassified(ctx context.Context, limit int) ([]*vacancy.Record, error)
	DeleteVacancy(ctx context.Context, id int64) error
	ApplyAnalysis(ctx context.Context, a vacancy.Analysis) error
}

// Notifier emits fire-and-forget diagnostic messages. Implementations must
// never fail the caller.
type Notifier interface {
	Send(ctx context.Context, message string)
}

// Reconciler runs the batch classification cycle. At most one Cycle is
// expected in flight at a time for a given store.
type Reconciler struct {
	store      Store
	classifier ai.Classifier
	notifier   Notifier
	capacity   int
	logger     *zap.Logger
}

// New creates a reconciler with the given batch capacity.
func New(store Store, classifier ai.Classifier, notifier Notifier, capacity int, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		capacity:   capacity,
		logger:     logger,
	}
}

// Cycle selects the oldest unclassified batch, classifies it and applies each
// verdict independently. The cycle is a deliberate no-op while the backlog is
// smaller than the batch capacity. A classifier failure aborts the cycle
// before any per-item work; the whole batch is retried on the next run.
func (r *Reconciler) Cycle(ctx context.Context) error {
	batch, err := r.store.Unclassified(ctx, r.capacity)
	if err != nil {
		return fmt.Errorf("selecting batch: %w", err)
	}

	if len(batch) < r.capacity {
		r.logger.Debug("backlog below batch capacity, waiting",
			zap.Int("backlog", len(batch)),
			zap.Int("capacity", r.capacity),
		)
		return nil
	}

	items := make([]ai.BatchItem, len(batch))
	byID := make(map[int64]*vacancy.Record, len(batch))
	for i, rec := range batch {
		items[i] = ai.BatchItem{ID: rec.ID, Text: rec.Text}
		byID[rec.ID] = rec
	}

	verdicts, err := r.classifier.Classify(ctx, items)
	if err != nil {
		r.logger.Error("classification failed, batch left for next cycle", zap.Error(err))
		r.notifier.Send(ctx, fmt.Sprintf("vacancy classification cycle failed: %v", err))
		return err
	}

	processed := 0
	for _, verdict := range verdicts {
		if r.applyVerdict(ctx, byID, verdict) {
			processed++
		}
	}

	r.logger.Info("reconciliation cycle complete",
		zap.Int("batch", len(batch)),
		zap.Int("verdicts", len(verdicts)),
		zap.Int("processed", processed),
	)
	r.notifier.Send(ctx, fmt.Sprintf("classified vacancy batch: %d of %d verdicts applied", processed, len(verdicts)))

	return nil
}

// applyVerdict handles one verdict and reports whether it was applied. An
// item's failure never blocks the rest of the batch.
func (r *Reconciler) applyVerdict(ctx context.Context, byID map[int64]*vacancy.Record, verdict ai.Verdict) bool {
	if verdict.Kind == ai.VerdictUnrecognized {
		r.logger.Debug("skipping ill-formed verdict item", zap.Int64("id", verdict.ID))
		return false
	}

	rec, ok := byID[verdict.ID]
	if !ok {
		r.logger.Debug("verdict references id outside this batch", zap.Int64("id", verdict.ID))
		return false
	}

	switch verdict.Kind {
	case ai.VerdictNotAVacancy:
		if err := r.store.DeleteVacancy(ctx, rec.ID); err != nil {
			r.logger.Error("removing non-vacancy record",
				zap.Error(&vacancy.WriteError{VacancyID: rec.ID, Err: err}))
			return false
		}
		r.logger.Info("removed non-vacancy record", zap.Int64("vacancy_id", rec.ID))
		return true

	case ai.VerdictClassified:
		if err := r.store.ApplyAnalysis(ctx, toAnalysis(rec.ID, verdict.Fields)); err != nil {
			r.logger.Error("attaching analysis, record stays unclassified",
				zap.Error(&vacancy.WriteError{VacancyID: rec.ID, Err: err}))
			return false
		}
		r.logger.Info("vacancy classified",
			zap.Int64("vacancy_id", rec.ID),
			zap.String("category", verdict.Fields.Category),
		)
		return true
	}

	return false
}

func toAnalysis(vacancyID int64, f ai.Fields) vacancy.Analysis {
	return vacancy.Analysis{
		VacancyID:      vacancyID,
		Category:       f.Category,
		Subcategory:    f.Subcategory,
		Company:        f.Company,
		Location:       f.Location,
		EmploymentType: f.EmploymentType,
		WorkFormat:     f.WorkFormat,
		SalaryMin:      f.SalaryMin,
		SalaryMax:      f.SalaryMax,
		SalaryCurrency: f.SalaryCurrency,
		Experience:     f.Experience,
		Requirements:   f.Requirements,
	}
}
