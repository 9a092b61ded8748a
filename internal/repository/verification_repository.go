package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

// ErrDuplicateVerification signals that the unique constraint on
// (client_id, activity_name, date, method) rejected an insert.
var ErrDuplicateVerification = errors.New("verification already exists")

const verificationColumns = `id, client_id, client_name, activity_name, date, method, kind, verified_at`

// VerificationRepository is the append-only verification ledger store.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs the repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Insert attempts to append one ledger record. The insert itself is the
// authoritative idempotency check: the unique constraint on
// (client_id, activity_name, date, method) turns a duplicate into
// ErrDuplicateVerification instead of a second row.
func (r *VerificationRepository) Insert(ctx context.Context, record *models.VerificationRecord) (*models.VerificationRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.VerifiedAt.IsZero() {
		record.VerifiedAt = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO verifications (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (client_id, activity_name, date, method) DO NOTHING
RETURNING %s`, verificationColumns, verificationColumns)

	var stored models.VerificationRecord
	err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.ClientID, record.ClientName, record.ActivityName,
		record.Date, record.Method, record.Kind, record.VerifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDuplicateVerification
		}
		return nil, fmt.Errorf("insert verification: %w", err)
	}
	return &stored, nil
}

// ExistingDates returns the set of dates inside the window that already carry
// a record for the enrollment and method, keyed by models.DateLayout. Used as
// a pre-check optimization by the pending-work resolver.
func (r *VerificationRepository) ExistingDates(ctx context.Context, key models.EnrollmentKey, method models.VerificationMethod, from, to time.Time) (map[string]struct{}, error) {
	query := `SELECT date FROM verifications
WHERE client_id = $1 AND activity_name = $2 AND method = $3 AND date BETWEEN $4 AND $5`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, key.ClientID, key.ActivityName, method, from, to); err != nil {
		return nil, fmt.Errorf("existing verification dates: %w", err)
	}
	existing := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		existing[d.Format(models.DateLayout)] = struct{}{}
	}
	return existing, nil
}

// ExistsOn reports whether a record already exists for the exact day.
func (r *VerificationRepository) ExistsOn(ctx context.Context, key models.EnrollmentKey, method models.VerificationMethod, date time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM verifications
WHERE client_id = $1 AND activity_name = $2 AND method = $3 AND date = $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, key.ClientID, key.ActivityName, method, date); err != nil {
		return false, fmt.Errorf("verification exists: %w", err)
	}
	return exists, nil
}

// List returns ledger records matching the provided filter, newest first.
func (r *VerificationRepository) List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Method != nil && filter.Method.Valid() {
		where = append(where, fmt.Sprintf("method = $%d", len(args)+1))
		args = append(args, *filter.Method)
	}
	if filter.ClientID != "" {
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := filter.Normalize()

	query := fmt.Sprintf(`SELECT %s FROM verifications WHERE %s
ORDER BY date DESC, verified_at DESC
LIMIT %d OFFSET %d`, verificationColumns, whereClause, size, (page-1)*size)

	var rows []models.VerificationRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list verifications: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM verifications WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count verifications: %w", err)
	}
	return rows, total, nil
}

// FindByID loads a single ledger record.
func (r *VerificationRepository) FindByID(ctx context.Context, id string) (*models.VerificationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM verifications WHERE id = $1", verificationColumns)
	var record models.VerificationRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Delete removes a ledger record. Deletion is the only mutation permitted on
// an existing record; callers are responsible for restoring the balance.
func (r *VerificationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM verifications WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
