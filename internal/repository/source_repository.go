package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

// SourceRepository reads the external client/activity source. The engine
// never writes through it.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository constructs the repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ListActivities returns every client-activity pair known to the source.
func (r *SourceRepository) ListActivities(ctx context.Context) ([]models.SourceActivity, error) {
	query := `SELECT c.id AS client_id, c.full_name AS client_name,
       a.activity_name, a.visit_weekdays, a.monthly_classes, a.is_trial_class, a.due_date
FROM client_activities a
JOIN clients c ON c.id = a.client_id
ORDER BY c.id, a.activity_name`
	var rows []models.SourceActivity
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list source activities: %w", err)
	}
	return rows, nil
}
