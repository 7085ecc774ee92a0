package iteration

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// row is the denormalized, sqlx-bound shape of a persisted iteration:
// the fixed columns named by the schema plus an opaque document.
type row struct {
	IterationID string `db:"iteration_id"`
	ModelName   string `db:"model_name"`
	ModelPath   string `db:"model_path"`
	CreatedAt   string `db:"created_at"`
	Data        string `db:"data"`
}

// Store is the durable, process-wide iteration record keeper. Writes
// to the same id are serialized through a per-id lock map so that a
// concurrent update never loses a field.
type Store struct {
	db *sqlx.DB

	mu       sync.Mutex
	rowLocks map[string]*sync.Mutex

	logger *log.Logger
}

// Open creates (or reopens) a sqlite-backed Store at path, running
// embedded migrations to bring the schema up to date.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("iteration: opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite has no internal connection pool safety for concurrent writers

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("iteration: setting migration dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return nil, fmt.Errorf("iteration: running migrations: %w", err)
	}

	return &Store{
		db:       sqlx.NewDb(sqlDB, "sqlite"),
		rowLocks: make(map[string]*sync.Mutex),
		logger:   log.New(log.Writer(), "iteration: ", log.LstdFlags),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func newID() string {
	return uuid.New().String()[:8]
}

// Create persists a new pending iteration record and returns it.
func (s *Store) Create(modelName, modelPath string, scaleFactor float64, originalDims, scaledDims [3]float64, params ParameterSnapshot, preset string) (Record, error) {
	rec := Record{
		IterationID:  newID(),
		ModelName:    modelName,
		ModelPath:    modelPath,
		CreatedAt:    time.Now().UTC(),
		ScaleFactor:  scaleFactor,
		OriginalDims: originalDims,
		ScaledDims:   scaledDims,
		Parameters:   params,
		PresetName:   preset,
		Status:       StatusPending,
	}

	if err := s.persist(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) persist(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("iteration: encoding record %s: %w", rec.IterationID, err)
	}

	lock := s.lockFor(rec.IterationID)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO iterations (iteration_id, model_name, model_path, created_at, data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(iteration_id) DO UPDATE SET
		   model_name = excluded.model_name,
		   model_path = excluded.model_path,
		   data = excluded.data`,
		rec.IterationID, rec.ModelName, rec.ModelPath, rec.CreatedAt.Format("2006-01-02T15:04:05.000000000Z07:00"), string(data),
	)
	if err != nil {
		return fmt.Errorf("iteration: persisting record %s: %w", rec.IterationID, err)
	}
	return nil
}

// Update atomically replaces the stored document for rec.IterationID.
func (s *Store) Update(rec Record) error {
	return s.persist(rec)
}

// Get returns the record for id, or false if absent.
func (s *Store) Get(id string) (Record, bool) {
	var r row
	err := s.db.Get(&r, `SELECT iteration_id, model_name, model_path, created_at, data FROM iterations WHERE iteration_id = ?`, id)
	if err != nil {
		return Record{}, false
	}
	return decodeRow(r)
}

func decodeRow(r row) (Record, bool) {
	var rec Record
	if err := json.Unmarshal([]byte(r.Data), &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// ListForModel returns the most recent iterations for modelName,
// newest first, bounded by limit.
func (s *Store) ListForModel(modelName string, limit int) ([]Record, error) {
	var rows []row
	err := s.db.Select(&rows,
		`SELECT iteration_id, model_name, model_path, created_at, data FROM iterations
		 WHERE model_name = ? ORDER BY created_at DESC LIMIT ?`, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("iteration: listing for model %s: %w", modelName, err)
	}
	return decodeRows(rows), nil
}

// ListRecent returns the most recent iterations across all models,
// newest first, bounded by limit.
func (s *Store) ListRecent(limit int) ([]Record, error) {
	var rows []row
	err := s.db.Select(&rows,
		`SELECT iteration_id, model_name, model_path, created_at, data FROM iterations
		 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("iteration: listing recent: %w", err)
	}
	return decodeRows(rows), nil
}

func decodeRows(rows []row) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if rec, ok := decodeRow(r); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Outcome is the terminal information recorded against an existing
// iteration.
type Outcome struct {
	Status       Status
	Quality      float64
	Defects      []string
	Notes        string
	PrintTimeMin float64
}

// RecordOutcome reads the existing record, applies the outcome, and
// atomically writes the full updated document back — a partial write
// can never leave a half-updated row. It also computes
// improvement-suggestions from the observed defects.
func (s *Store) RecordOutcome(id string, outcome Outcome) (Record, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	rec, ok := s.Get(id)
	if !ok {
		return Record{}, fmt.Errorf("iteration: no such record %s", id)
	}

	rec.Status = outcome.Status
	rec.QualityScore = outcome.Quality
	rec.Defects = outcome.Defects
	rec.Notes = outcome.Notes
	rec.PrintTimeMin = outcome.PrintTimeMin
	rec.Improvements = improvementSuggestions(outcome.Defects)

	now := time.Now().UTC()
	switch outcome.Status {
	case StatusPrinting:
		if rec.StartedAt == nil {
			rec.StartedAt = &now
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		rec.CompletedAt = &now
	}

	if err := s.persistLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// persistLocked writes rec without taking the per-id lock, for
// callers that already hold it.
func (s *Store) persistLocked(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("iteration: encoding record %s: %w", rec.IterationID, err)
	}
	_, err = s.db.Exec(
		`UPDATE iterations SET model_name = ?, model_path = ?, data = ? WHERE iteration_id = ?`,
		rec.ModelName, rec.ModelPath, string(data), rec.IterationID,
	)
	if err != nil {
		return fmt.Errorf("iteration: persisting record %s: %w", rec.IterationID, err)
	}
	return nil
}

// Statistics computes aggregate stats for modelName across every
// stored iteration.
func (s *Store) Statistics(modelName string) (Statistics, error) {
	var rows []row
	err := s.db.Select(&rows,
		`SELECT iteration_id, model_name, model_path, created_at, data FROM iterations
		 WHERE model_name = ? ORDER BY created_at DESC`, modelName)
	if err != nil {
		return Statistics{}, fmt.Errorf("iteration: computing statistics for model %s: %w", modelName, err)
	}
	records := decodeRows(rows)

	stats := Statistics{ModelName: modelName, DefectCounts: make(map[string]int)}
	if len(records) == 0 {
		return stats, nil
	}

	var successCount int
	var qualitySum float64
	var qualityCount int

	for i, r := range records {
		stats.TotalAttempts++
		if r.Status == StatusCompleted {
			successCount++
		}
		if r.Status == StatusCompleted {
			qualitySum += r.QualityScore
			qualityCount++
			if r.QualityScore > stats.BestQuality {
				stats.BestQuality = r.QualityScore
			}
		}
		for _, d := range r.Defects {
			stats.DefectCounts[d]++
		}
		if i == 0 {
			rCopy := r
			stats.Latest = &rCopy
		}
	}

	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(successCount) / float64(stats.TotalAttempts) * 100
	}
	if qualityCount > 0 {
		stats.AverageQuality = qualitySum / float64(qualityCount)
	}

	return stats, nil
}
