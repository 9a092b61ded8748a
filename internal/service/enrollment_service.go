package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/schedule"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
)

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByKey(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
	Regularize(ctx context.Context, key models.EnrollmentKey, pendingClasses int, dueDate *time.Time) (*models.Enrollment, error)
	UpsertFromSource(ctx context.Context, rows []models.SourceActivity) (int, error)
}

type sourceReader interface {
	ListActivities(ctx context.Context) ([]models.SourceActivity, error)
}

// EnrollmentService exposes the balance store: listing, reconciliation from
// the external client/activity source, and the administrative regularization
// escape hatch.
type EnrollmentService struct {
	repo       enrollmentStore
	source     sourceReader
	cache      summaryCache
	validator  *validator.Validate
	logger     *zap.Logger
	loc        *time.Location
	secretHash string
}

// NewEnrollmentService constructs the service. secretHash is the bcrypt hash
// of the regularization shared secret.
func NewEnrollmentService(repo enrollmentStore, source sourceReader, cache summaryCache, validate *validator.Validate, logger *zap.Logger, loc *time.Location, secretHash string) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &EnrollmentService{repo: repo, source: source, cache: cache, validator: validate, logger: logger, loc: loc, secretHash: secretHash}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page, size := filter.Normalize()
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Reconcile pulls every client-activity pair from the source and upserts it
// into the balance store. Returns the number of reconciled rows.
func (s *EnrollmentService) Reconcile(ctx context.Context) (int, error) {
	rows, err := s.source.ListActivities(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read client source")
	}
	count, err := s.repo.UpsertFromSource(ctx, rows)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile enrollments")
	}
	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx); err != nil {
			s.logger.Warn("summary invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("enrollments reconciled", zap.Int("count", count))
	return count, nil
}

// RegularizeRequest carries the operator-supplied balance reset.
type RegularizeRequest struct {
	PendingClasses int    `json:"pending_classes" validate:"required,gt=0"`
	AdminSecret    string `json:"admin_secret" validate:"required"`
}

// Regularize resets the pending balance and, when the enrollment is overdue,
// rolls the due date forward one calendar month. It bypasses every gate the
// executor and the manual path enforce.
func (s *EnrollmentService) Regularize(ctx context.Context, key models.EnrollmentKey, req RegularizeRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regularization payload")
	}

	if s.secretHash == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidAdminSecret, "admin secret not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.secretHash), []byte(req.AdminSecret)); err != nil {
		return nil, appErrors.ErrInvalidAdminSecret
	}

	enrollment, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEnrollmentNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	today := schedule.Normalize(time.Now(), s.loc)
	var newDue *time.Time
	if enrollment.OverdueAt(today) {
		rolled := today.AddDate(0, 1, 0)
		newDue = &rolled
	}

	updated, err := s.repo.Regularize(ctx, key, req.PendingClasses, newDue)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to regularize enrollment")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx); err != nil {
			s.logger.Warn("summary invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("enrollment regularized",
		zap.String("client_id", key.ClientID), zap.String("activity", key.ActivityName), zap.Int("pending_classes", req.PendingClasses))
	return updated, nil
}
