package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

// ErrBalanceExhausted signals that a guarded balance mutation matched no row:
// either the pending counter was already zero or the trial flag was already
// cleared. The pending counter can never go negative because the guard lives
// in the UPDATE's WHERE clause.
var ErrBalanceExhausted = errors.New("class balance exhausted")

const enrollmentColumns = `client_id, client_name, activity_name, visit_weekdays, pending_classes, completed_classes, is_trial_class, due_date, last_updated`

// EnrollmentRepository is the class balance store.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments matching the filter with a total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClientID != "" {
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)+1))
		args = append(args, filter.ClientID)
	}
	if filter.ActivityName != "" {
		where = append(where, fmt.Sprintf("activity_name = $%d", len(args)+1))
		args = append(args, filter.ActivityName)
	}
	whereClause := strings.Join(where, " AND ")
	page, size := filter.Normalize()

	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE %s
ORDER BY client_id, activity_name
LIMIT %d OFFSET %d`, enrollmentColumns, whereClause, size, (page-1)*size)

	var rows []models.Enrollment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments WHERE %s", whereClause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return rows, total, nil
}

// ListWithPattern returns every enrollment carrying a non-empty visit pattern.
func (r *EnrollmentRepository) ListWithPattern(ctx context.Context) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments
WHERE cardinality(visit_weekdays) > 0
ORDER BY client_id, activity_name`, enrollmentColumns)
	var rows []models.Enrollment
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list enrollments with pattern: %w", err)
	}
	return rows, nil
}

// FindByKey loads one enrollment by its composite identity.
func (r *EnrollmentRepository) FindByKey(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE client_id = $1 AND activity_name = $2", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByClient returns every enrollment of one client.
func (r *EnrollmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE client_id = $1 ORDER BY activity_name", enrollmentColumns)
	var rows []models.Enrollment
	if err := r.db.SelectContext(ctx, &rows, query, clientID); err != nil {
		return nil, fmt.Errorf("list enrollments by client: %w", err)
	}
	return rows, nil
}

// ApplyRegular consumes one regular class: pending−1, completed+1. The
// pending_classes > 0 guard makes the mutation fail atomically instead of
// going negative.
func (r *EnrollmentRepository) ApplyRegular(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments
SET pending_classes = pending_classes - 1,
    completed_classes = completed_classes + 1,
    last_updated = $3
WHERE client_id = $1 AND activity_name = $2 AND pending_classes > 0
RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBalanceExhausted
		}
		return nil, fmt.Errorf("apply regular verification: %w", err)
	}
	return &enrollment, nil
}

// ApplyTrial consumes the trial class: the flag is cleared permanently and
// neither counter is touched.
func (r *EnrollmentRepository) ApplyTrial(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments
SET is_trial_class = FALSE,
    last_updated = $3
WHERE client_id = $1 AND activity_name = $2 AND is_trial_class
RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBalanceExhausted
		}
		return nil, fmt.Errorf("apply trial verification: %w", err)
	}
	return &enrollment, nil
}

// RestoreRegular reverts one regular verification: pending+1, completed−1
// floored at zero.
func (r *EnrollmentRepository) RestoreRegular(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments
SET pending_classes = pending_classes + 1,
    completed_classes = GREATEST(completed_classes - 1, 0),
    last_updated = $3
WHERE client_id = $1 AND activity_name = $2
RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// RestoreTrial reverts a trial verification by re-arming the trial flag.
func (r *EnrollmentRepository) RestoreTrial(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments
SET is_trial_class = TRUE,
    last_updated = $3
WHERE client_id = $1 AND activity_name = $2
RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Regularize resets the balance to the supplied pending count, zeroes the
// completed counter, clears the trial flag and optionally rolls the due date
// forward. A nil dueDate leaves the stored one untouched.
func (r *EnrollmentRepository) Regularize(ctx context.Context, key models.EnrollmentKey, pendingClasses int, dueDate *time.Time) (*models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments
SET pending_classes = $3,
    completed_classes = 0,
    is_trial_class = FALSE,
    due_date = COALESCE($4, due_date),
    last_updated = $5
WHERE client_id = $1 AND activity_name = $2
RETURNING %s`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, key.ClientID, key.ActivityName, pendingClasses, dueDate, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpsertFromSource reconciles source rows into the balance store. New
// enrollments start with the source's monthly class count as pending balance;
// existing rows only refresh the source-owned fields, never the engine-owned
// counters.
func (r *EnrollmentRepository) UpsertFromSource(ctx context.Context, rows []models.SourceActivity) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reconcile: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback() //nolint:errcheck
		}
	}()

	query := `INSERT INTO enrollments (client_id, client_name, activity_name, visit_weekdays, pending_classes, completed_classes, is_trial_class, due_date, last_updated)
VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
ON CONFLICT (client_id, activity_name)
DO UPDATE SET client_name = EXCLUDED.client_name,
              visit_weekdays = EXCLUDED.visit_weekdays,
              due_date = EXCLUDED.due_date,
              last_updated = EXCLUDED.last_updated`
	now := time.Now().UTC()
	count := 0
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query,
			row.ClientID, row.ClientName, row.ActivityName, row.VisitWeekdays,
			row.MonthlyClasses, row.IsTrialClass, row.DueDate, now); err != nil {
			return 0, fmt.Errorf("reconcile enrollment %s/%s: %w", row.ClientID, row.ActivityName, err)
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reconcile: %w", err)
	}
	committed = true
	return count, nil
}
