package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
)

var recordColumns = []string{
	"r.id", "r.version", "r.user_id", "r.conversation_id", "r.amount", "r.counterparty",
	"r.description", "r.record_date", "r.category_id", "c.name", "r.category_confidence",
	"r.category_source", "r.source_text", "r.status", "r.created_at", "r.confirmed_at",
}

func recordSelect() sq.SelectBuilder {
	return psql.Select(recordColumns...).
		From("records r").
		Join("categories c ON c.id = r.category_id")
}

// SaveRecordVersion inserts a new immutable version of a record.
// Versions of an already confirmed record are rejected.
func (s *SQLiteStorage) SaveRecordVersion(ctx context.Context, record *model.CandidateRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.Status = model.RecordUnconfirmed
	record.ConfirmedAt = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var confirmed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE id = ? AND status = ?`,
		record.ID, model.RecordConfirmed).Scan(&confirmed); err != nil {
		return fmt.Errorf("failed to check record status: %w", err)
	}
	if confirmed > 0 {
		return fmt.Errorf("%w: %s", common.ErrRecordConfirmed, record.ID)
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE id = ? AND version = ?`,
		record.ID, record.Version).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check record version: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: record %s version %d", common.ErrDuplicateEntry, record.ID, record.Version)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (
			id, version, user_id, conversation_id, amount, counterparty, description,
			record_date, category_id, category_confidence, category_source, source_text,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Version, record.UserID, record.ConversationID, record.Amount,
		record.Counterparty, record.Description, record.Date.UTC(), record.CategoryID,
		record.CategoryConfidence, string(record.CategorySource), record.SourceText,
		string(record.Status), record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record version: %w", err)
	}
	return nil
}

// ConfirmRecord confirms the given version, which must be the latest.
// Confirming an already confirmed version is a no-op.
func (s *SQLiteStorage) ConfirmRecord(ctx context.Context, id string, version int, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest int
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT version, status FROM records
		WHERE id = ? ORDER BY version DESC LIMIT 1`, id).Scan(&latest, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	if latest != version {
		return fmt.Errorf("%w: record %s latest version is %d, not %d", common.ErrVersionConflict, id, latest, version)
	}
	if model.RecordStatus(status) == model.RecordConfirmed {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE records SET status = ?, confirmed_at = ?
		WHERE id = ? AND version = ?`,
		model.RecordConfirmed, at.UTC(), id, version); err != nil {
		return fmt.Errorf("failed to confirm record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return nil
}

// GetRecord returns the latest version of a record.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*model.CandidateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	records, err := s.queryRecords(ctx, recordSelect().
		Where(sq.Eq{"r.id": id}).
		OrderBy("r.version DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, common.ErrNotFound
	}
	return &records[0], nil
}

// GetRecordVersions returns every version of a record, oldest first.
func (s *SQLiteStorage) GetRecordVersions(ctx context.Context, id string) ([]model.CandidateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	return s.queryRecords(ctx, recordSelect().
		Where(sq.Eq{"r.id": id}).
		OrderBy("r.version ASC"))
}

// ListRecords returns the latest version of each record matching filter, newest first.
func (s *SQLiteStorage) ListRecords(ctx context.Context, filter service.RecordFilter) ([]model.CandidateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, ErrInvalidDateRange
	}

	q := recordSelect().
		Where("r.version = (SELECT MAX(v.version) FROM records v WHERE v.id = r.id)").
		OrderBy("r.record_date DESC", "r.created_at DESC")

	if filter.UserID != "" {
		q = q.Where(sq.Eq{"r.user_id": filter.UserID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"r.status": string(filter.Status)})
	}
	if filter.CategoryID != nil {
		q = q.Where(sq.Eq{"r.category_id": *filter.CategoryID})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"r.record_date": filter.From.UTC()})
	}
	if filter.To != nil {
		q = q.Where(sq.Lt{"r.record_date": filter.To.UTC()})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	return s.queryRecords(ctx, q)
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, q sq.SelectBuilder) ([]model.CandidateRecord, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build record query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.CandidateRecord
	for rows.Next() {
		var rec model.CandidateRecord
		var source, status string
		var confirmedAt sql.NullTime
		if err := rows.Scan(
			&rec.ID, &rec.Version, &rec.UserID, &rec.ConversationID, &rec.Amount, &rec.Counterparty,
			&rec.Description, &rec.Date, &rec.CategoryID, &rec.CategoryName, &rec.CategoryConfidence,
			&source, &rec.SourceText, &status, &rec.CreatedAt, &confirmedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.CategorySource = model.CategorySource(source)
		rec.Status = model.RecordStatus(status)
		if confirmedAt.Valid {
			t := confirmedAt.Time
			rec.ConfirmedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}
