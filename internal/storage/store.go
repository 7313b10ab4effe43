// Package storage persists vacancies, analyses and the taxonomy in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/vacradar/vacradar/internal/vacancy"
)

const schema = `
CREATE TABLE IF NOT EXISTS areas (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS vacancies (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	text          TEXT NOT NULL,
	source        TEXT NOT NULL,
	area_id       INTEGER REFERENCES areas(id) ON DELETE SET NULL,
	is_classified INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_vacancies_unclassified
	ON vacancies (is_classified, created_at);

CREATE TABLE IF NOT EXISTS categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS subcategories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	UNIQUE (category_id, name)
);

CREATE TABLE IF NOT EXISTS requirements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	UNIQUE (category_id, name)
);

CREATE TABLE IF NOT EXISTS analyses (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	vacancy_id      INTEGER NOT NULL UNIQUE REFERENCES vacancies(id) ON DELETE CASCADE,
	category_id     INTEGER NOT NULL REFERENCES categories(id),
	subcategory_id  INTEGER REFERENCES subcategories(id),
	company         TEXT NOT NULL,
	location        TEXT NOT NULL,
	employment_type TEXT NOT NULL,
	work_format     TEXT NOT NULL,
	salary_min      TEXT NOT NULL,
	salary_max      TEXT NOT NULL,
	salary_currency TEXT NOT NULL,
	experience      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_requirements (
	analysis_id    INTEGER NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	requirement_id INTEGER NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
	PRIMARY KEY (analysis_id, requirement_id)
);
`

// Store is the persistence collaborator for vacancies and the taxonomy.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and bootstraps the
// schema. Use ":memory:" for an in-process throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection keeps
	// in-memory databases and transactions predictable.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateVacancy persists a new unclassified vacancy and returns the stored
// record with its assigned id.
func (s *Store) CreateVacancy(ctx context.Context, text, source string) (*vacancy.Record, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO vacancies (text, source) VALUES (?, ?)", text, source)
	if err != nil {
		return nil, fmt.Errorf("inserting vacancy: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading vacancy id: %w", err)
	}

	return s.Vacancy(ctx, id)
}

// Vacancy loads a single record by id.
func (s *Store) Vacancy(ctx context.Context, id int64) (*vacancy.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT v.id, v.text, v.source, COALESCE(a.name, ''), v.is_classified, v.created_at
		FROM vacancies v LEFT JOIN areas a ON a.id = v.area_id
		WHERE v.id = ?`, id)

	rec := &vacancy.Record{}
	err := row.Scan(&rec.ID, &rec.Text, &rec.Source, &rec.Area, &rec.Classified, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vacancy %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading vacancy %d: %w", id, err)
	}
	return rec, nil
}

// VacancyTexts returns the texts of every stored vacancy in creation order.
// The duplicate index is rebuilt from this snapshot on each ingestion request.
func (s *Store) VacancyTexts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT text FROM vacancies ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing vacancy texts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning vacancy text: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// Unclassified returns up to limit unclassified vacancies, oldest first.
func (s *Store) Unclassified(ctx context.Context, limit int) ([]*vacancy.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, source, is_classified, created_at
		FROM vacancies WHERE is_classified = 0
		ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unclassified vacancies: %w", err)
	}
	defer rows.Close()

	var records []*vacancy.Record
	for rows.Next() {
		rec := &vacancy.Record{}
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Source, &rec.Classified, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning vacancy: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteVacancy removes a record and, via cascade, its analysis and tag
// attachments. Deleting an already removed record is a no-op.
func (s *Store) DeleteVacancy(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vacancies WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting vacancy %d: %w", id, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetOrCreateCategory resolves a category id by name, creating the row on
// first sight. Concurrent calls for the same name converge on a single row.
func (s *Store) GetOrCreateCategory(ctx context.Context, name string) (int64, error) {
	return getOrCreate(ctx, s.db,
		"INSERT OR IGNORE INTO categories (name) VALUES (?)",
		"SELECT id FROM categories WHERE name = ?", name)
}

// GetOrCreateSubcategory resolves a subcategory id by (category, name).
func (s *Store) GetOrCreateSubcategory(ctx context.Context, categoryID int64, name string) (int64, error) {
	return getOrCreate(ctx, s.db,
		"INSERT OR IGNORE INTO subcategories (category_id, name) VALUES (?, ?)",
		"SELECT id FROM subcategories WHERE category_id = ? AND name = ?", categoryID, name)
}

// GetOrCreateRequirement resolves a requirement-tag id by (category, name).
func (s *Store) GetOrCreateRequirement(ctx context.Context, categoryID int64, name string) (int64, error) {
	return getOrCreate(ctx, s.db,
		"INSERT OR IGNORE INTO requirements (category_id, name) VALUES (?, ?)",
		"SELECT id FROM requirements WHERE category_id = ? AND name = ?", categoryID, name)
}

// getOrCreate is the idempotent lookup-or-create primitive for taxonomy rows.
// INSERT OR IGNORE under a UNIQUE constraint guarantees first-seen-wins.
func getOrCreate(ctx context.Context, q querier, insert, query string, args ...any) (int64, error) {
	if _, err := q.ExecContext(ctx, insert, args...); err != nil {
		return 0, fmt.Errorf("creating taxonomy row: %w", err)
	}

	var id int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolving taxonomy row: %w", err)
	}
	return id, nil
}

// ApplyAnalysis attaches a classified verdict to a vacancy as one atomic unit:
// taxonomy rows are resolved first-seen-wins, the analysis row is created or
// replaced, the tag set is replaced wholesale and the classified flag is set.
// On any failure the transaction rolls back and the record stays unclassified.
func (s *Store) ApplyAnalysis(ctx context.Context, a vacancy.Analysis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	categoryID, err := getOrCreate(ctx, tx,
		"INSERT OR IGNORE INTO categories (name) VALUES (?)",
		"SELECT id FROM categories WHERE name = ?", a.Category)
	if err != nil {
		return err
	}

	var subcategoryID sql.NullInt64
	if a.Subcategory != "" {
		id, err := getOrCreate(ctx, tx,
			"INSERT OR IGNORE INTO subcategories (category_id, name) VALUES (?, ?)",
			"SELECT id FROM subcategories WHERE category_id = ? AND name = ?", categoryID, a.Subcategory)
		if err != nil {
			return err
		}
		subcategoryID = sql.NullInt64{Int64: id, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analyses (
			vacancy_id, category_id, subcategory_id, company, location,
			employment_type, work_format, salary_min, salary_max,
			salary_currency, experience
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vacancy_id) DO UPDATE SET
			category_id = excluded.category_id,
			subcategory_id = excluded.subcategory_id,
			company = excluded.company,
			location = excluded.location,
			employment_type = excluded.employment_type,
			work_format = excluded.work_format,
			salary_min = excluded.salary_min,
			salary_max = excluded.salary_max,
			salary_currency = excluded.salary_currency,
			experience = excluded.experience`,
		a.VacancyID, categoryID, subcategoryID, a.Company, a.Location,
		a.EmploymentType, a.WorkFormat, a.SalaryMin, a.SalaryMax,
		a.SalaryCurrency, a.Experience); err != nil {
		return fmt.Errorf("upserting analysis for vacancy %d: %w", a.VacancyID, err)
	}

	var analysisID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM analyses WHERE vacancy_id = ?", a.VacancyID).Scan(&analysisID); err != nil {
		return fmt.Errorf("resolving analysis id for vacancy %d: %w", a.VacancyID, err)
	}

	// Replace, never merge, the requirement-tag set.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM analysis_requirements WHERE analysis_id = ?", analysisID); err != nil {
		return fmt.Errorf("clearing requirement tags: %w", err)
	}

	for _, req := range a.Requirements {
		req = strings.TrimSpace(req)
		if req == "" {
			continue
		}
		reqID, err := getOrCreate(ctx, tx,
			"INSERT OR IGNORE INTO requirements (category_id, name) VALUES (?, ?)",
			"SELECT id FROM requirements WHERE category_id = ? AND name = ?", categoryID, req)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO analysis_requirements (analysis_id, requirement_id) VALUES (?, ?)",
			analysisID, reqID); err != nil {
			return fmt.Errorf("attaching requirement tag: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE vacancies SET is_classified = 1 WHERE id = ?", a.VacancyID)
	if err != nil {
		return fmt.Errorf("marking vacancy %d classified: %w", a.VacancyID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("vacancy %d not found", a.VacancyID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing analysis for vacancy %d: %w", a.VacancyID, err)
	}
	return nil
}

// Analysis loads the stored analysis for a vacancy, including its requirement
// tags sorted by name. Returns sql.ErrNoRows when none exists.
func (s *Store) Analysis(ctx context.Context, vacancyID int64) (*vacancy.Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT an.id, c.name, COALESCE(sc.name, ''), an.company, an.location,
			an.employment_type, an.work_format, an.salary_min, an.salary_max,
			an.salary_currency, an.experience
		FROM analyses an
		JOIN categories c ON c.id = an.category_id
		LEFT JOIN subcategories sc ON sc.id = an.subcategory_id
		WHERE an.vacancy_id = ?`, vacancyID)

	a := &vacancy.Analysis{VacancyID: vacancyID}
	var analysisID int64
	err := row.Scan(&analysisID, &a.Category, &a.Subcategory, &a.Company, &a.Location,
		&a.EmploymentType, &a.WorkFormat, &a.SalaryMin, &a.SalaryMax,
		&a.SalaryCurrency, &a.Experience)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name FROM analysis_requirements ar
		JOIN requirements r ON r.id = ar.requirement_id
		WHERE ar.analysis_id = ? ORDER BY r.name`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("listing requirement tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning requirement tag: %w", err)
		}
		a.Requirements = append(a.Requirements, name)
	}
	return a, rows.Err()
}

// CountCategories reports the number of distinct taxonomy categories. Used by
// tests verifying first-seen-wins semantics.
func (s *Store) CountCategories(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count)
	return count, err
}
