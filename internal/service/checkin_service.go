package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/repository"
	"github.com/noah-isme/studio-asistencia-api/internal/schedule"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
)

// CheckinService is the manual (presencial) verification gate used at the
// front desk: single shot, one enrollment, today's date only.
type CheckinService struct {
	balances  balanceStore
	ledger    verificationLedger
	cache     summaryCache
	metrics   engineMetrics
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
}

// NewCheckinService constructs the service.
func NewCheckinService(balances balanceStore, ledger verificationLedger, cache summaryCache, metrics engineMetrics, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *CheckinService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &CheckinService{balances: balances, ledger: ledger, cache: cache, metrics: metrics, validator: validate, logger: logger, loc: loc}
}

// CheckinRequest identifies the client scanned or typed at the kiosk. The
// activity is optional when the client has exactly one enrollment.
type CheckinRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ActivityName string `json:"activity_name"`
}

// Verify applies one presencial verification for today, with the same ledger
// semantics as the batch executor: insert record first, mutate balance after,
// duplicates rejected by the storage constraint.
func (s *CheckinService) Verify(ctx context.Context, req CheckinRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checkin payload")
	}

	enrollment, err := s.resolveEnrollment(ctx, req)
	if err != nil {
		return nil, err
	}

	today := schedule.Normalize(time.Now(), s.loc)
	if err := s.gate(enrollment, today); err != nil {
		return nil, err
	}

	key := enrollment.Key()

	// Pre-check is an optimization; the insert below stays authoritative.
	exists, err := s.ledger.ExistsOn(ctx, key, models.MethodPresencial, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing verification")
	}
	if exists {
		s.metrics.VerificationRejected("duplicate_presencial")
		return nil, appErrors.ErrDuplicatePresencial
	}

	kind := models.KindClaseRegular
	if enrollment.IsTrialClass {
		kind = models.KindClasePrueba
	}

	_, err = s.ledger.Insert(ctx, &models.VerificationRecord{
		ClientID:     enrollment.ClientID,
		ClientName:   enrollment.ClientName,
		ActivityName: enrollment.ActivityName,
		Date:         today,
		Method:       models.MethodPresencial,
		Kind:         kind,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateVerification) {
			s.metrics.VerificationRejected("duplicate_presencial")
			return nil, appErrors.ErrDuplicatePresencial
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert verification")
	}

	var updated *models.Enrollment
	if kind == models.KindClasePrueba {
		updated, err = s.balances.ApplyTrial(ctx, key)
	} else {
		updated, err = s.balances.ApplyRegular(ctx, key)
	}
	if err != nil {
		if errors.Is(err, repository.ErrBalanceExhausted) {
			// Gate passed but a concurrent mutation emptied the balance.
			s.logger.Warn("presencial record without balance mutation",
				zap.String("client_id", key.ClientID), zap.String("activity", key.ActivityName))
			return nil, appErrors.ErrNoClassesRemaining
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update balance")
	}

	s.metrics.VerificationCreated(string(models.MethodPresencial), string(kind))
	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx); err != nil {
			s.logger.Warn("summary invalidation failed", zap.Error(err))
		}
	}
	return updated, nil
}

// resolveEnrollment picks the applicable activity: the named one, or the only
// one the client has.
func (s *CheckinService) resolveEnrollment(ctx context.Context, req CheckinRequest) (*models.Enrollment, error) {
	enrollments, err := s.balances.ListByClient(ctx, req.ClientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client enrollments")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "client has no enrollments")
	}

	if req.ActivityName != "" {
		for i := range enrollments {
			if enrollments[i].ActivityName == req.ActivityName {
				return &enrollments[i], nil
			}
		}
		return nil, appErrors.Clone(appErrors.ErrEnrollmentNotFound, "client is not enrolled in "+req.ActivityName)
	}
	if len(enrollments) == 1 {
		return &enrollments[0], nil
	}
	return nil, appErrors.ErrAmbiguousActivity
}

// gate enforces the due-date and balance conditions. Both failures are
// reported together when both hold.
func (s *CheckinService) gate(e *models.Enrollment, today time.Time) error {
	var reasons []string
	if e.OverdueAt(today) {
		reasons = append(reasons, appErrors.ErrOverdue.Message)
	}
	if !e.CanConsume() {
		reasons = append(reasons, appErrors.ErrNoClassesRemaining.Message)
	}

	switch len(reasons) {
	case 0:
		return nil
	case 1:
		if e.OverdueAt(today) {
			s.metrics.VerificationRejected("overdue")
			return appErrors.ErrOverdue
		}
		s.metrics.VerificationRejected("insufficient_balance")
		return appErrors.ErrNoClassesRemaining
	default:
		s.metrics.VerificationRejected("gated")
		return appErrors.Clone(appErrors.ErrVerificationGated, strings.Join(reasons, "; "))
	}
}
