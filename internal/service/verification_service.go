package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	"github.com/noah-isme/studio-asistencia-api/internal/repository"
	"github.com/noah-isme/studio-asistencia-api/internal/schedule"
	"github.com/noah-isme/studio-asistencia-api/pkg/config"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
)

type verificationLedger interface {
	Insert(ctx context.Context, record *models.VerificationRecord) (*models.VerificationRecord, error)
	ExistingDates(ctx context.Context, key models.EnrollmentKey, method models.VerificationMethod, from, to time.Time) (map[string]struct{}, error)
	ExistsOn(ctx context.Context, key models.EnrollmentKey, method models.VerificationMethod, date time.Time) (bool, error)
	List(ctx context.Context, filter models.VerificationFilter) ([]models.VerificationRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.VerificationRecord, error)
	Delete(ctx context.Context, id string) error
}

type balanceStore interface {
	ListWithPattern(ctx context.Context) ([]models.Enrollment, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Enrollment, error)
	FindByKey(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
	ApplyRegular(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
	ApplyTrial(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
	RestoreRegular(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
	RestoreTrial(ctx context.Context, key models.EnrollmentKey) (*models.Enrollment, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateSummaries(ctx context.Context) error
}

type engineMetrics interface {
	VerificationCreated(method, kind string)
	VerificationRejected(reason string)
}

const (
	reasonInsufficientBalance = "insufficient balance"
	reasonOverdue             = "activity due date has passed"
)

type noopMetrics struct{}

func (noopMetrics) VerificationCreated(method, kind string) {}
func (noopMetrics) VerificationRejected(reason string)     {}

// VerificationService implements the pending-work resolver, the batch
// executor and the ledger history/undo operations.
type VerificationService struct {
	ledger    verificationLedger
	balances  balanceStore
	cache     summaryCache
	metrics   engineMetrics
	validator *validator.Validate
	logger    *zap.Logger

	loc          *time.Location
	lookbackDays int
	cacheTTL     time.Duration
	workers      int
}

// NewVerificationService constructs the service.
func NewVerificationService(ledger verificationLedger, balances balanceStore, cache summaryCache, metrics engineMetrics, validate *validator.Validate, logger *zap.Logger, cfg config.VerificationConfig) *VerificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown verification timezone, falling back to Local", zap.String("timezone", cfg.Timezone))
		loc = time.Local
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	workers := cfg.WorkerConcurrency
	if workers <= 0 {
		workers = 1
	}
	return &VerificationService{
		ledger:       ledger,
		balances:     balances,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		loc:          loc,
		lookbackDays: lookback,
		cacheTTL:     cfg.SummaryCacheTTL,
		workers:      workers,
	}
}

// Location exposes the reference location used for calendar comparisons.
func (s *VerificationService) Location() *time.Location {
	return s.loc
}

func (s *VerificationService) today() time.Time {
	return schedule.Normalize(time.Now(), s.loc)
}

// Summary builds the pending-work summary for the given cutoff date. It is
// read-only; the result is cached per cutoff until the next mutation.
func (s *VerificationService) Summary(ctx context.Context, cutoff time.Time) (*models.SummaryResult, error) {
	cutoffDay := schedule.Normalize(cutoff, s.loc)
	cacheKey := repository.SummaryKey(cutoffDay.Format(models.DateLayout))

	if s.cache != nil {
		var cached models.SummaryResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	enrollments, err := s.balances.ListWithPattern(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	today := s.today()
	result := &models.SummaryResult{
		Cutoff:  cutoffDay.Format(models.DateLayout),
		Resumen: make([]models.EnrollmentSummaryRow, 0, len(enrollments)),
	}

	for i := range enrollments {
		e := &enrollments[i]
		if !e.VisitWeekdays.Valid() {
			// Data-quality problem in one row must not sink the summary.
			warning := fmt.Sprintf("enrollment %s/%s skipped: visit weekdays out of range", e.ClientID, e.ActivityName)
			result.Warnings = append(result.Warnings, warning)
			s.logger.Warn("malformed visit weekdays", zap.String("client_id", e.ClientID), zap.String("activity", e.ActivityName))
			continue
		}

		outstanding, err := s.outstanding(ctx, e, cutoffDay)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve outstanding days")
		}

		hasPendingWork := len(outstanding) > 0 && e.CanConsume() && !e.OverdueAt(today)
		if hasPendingWork {
			result.CountWithPendingWork++
		}
		result.Resumen = append(result.Resumen, models.EnrollmentSummaryRow{
			ClientID:        e.ClientID,
			ClientName:      e.ClientName,
			ActivityName:    e.ActivityName,
			PendingClasses:  e.PendingClasses,
			IsTrialClass:    e.IsTrialClass,
			VisitWeekdays:   e.VisitWeekdays,
			HasPendingWork:  hasPendingWork,
			OutstandingDays: outstanding,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// outstanding projects the enrollment's visit pattern over the window ending
// at cutoff and drops every date already covered by an automatic record.
func (s *VerificationService) outstanding(ctx context.Context, e *models.Enrollment, cutoff time.Time) ([]models.OutstandingDay, error) {
	start, end := schedule.Window(cutoff, s.lookbackDays, s.loc)
	dates := schedule.Project(e.VisitWeekdays, start, end)
	if len(dates) == 0 {
		return nil, nil
	}

	existing, err := s.ledger.ExistingDates(ctx, e.Key(), models.MethodAutomatica, start, end)
	if err != nil {
		return nil, err
	}

	outstanding := make([]models.OutstandingDay, 0, len(dates))
	for _, d := range dates {
		dayKey := d.Format(models.DateLayout)
		if _, ok := existing[dayKey]; ok {
			continue
		}
		outstanding = append(outstanding, models.OutstandingDay{Date: dayKey, Weekday: int(d.Weekday())})
	}
	return outstanding, nil
}

// ExecuteBatchItem selects one enrollment out of the summary.
type ExecuteBatchItem struct {
	ClientID     string `json:"client_id" validate:"required"`
	ActivityName string `json:"activity_name" validate:"required"`
}

// ExecuteBatchRequest describes the batch execution payload. Without items
// every enrollment with pending work is processed.
type ExecuteBatchRequest struct {
	Cutoff string             `json:"cutoff" validate:"omitempty,datetime=2006-01-02"`
	Items  []ExecuteBatchItem `json:"items" validate:"omitempty,dive"`
}

// ExecuteBatch runs automatic verifications for the selected enrollments.
// Enrollments are independent and processed by a bounded worker pool; days
// within one enrollment stay strictly ascending because later-day gating
// depends on earlier-day balance mutation. Each day is its own atomic unit:
// there is no batch rollback, and cancellation only stops submitting further
// days.
func (s *VerificationService) ExecuteBatch(ctx context.Context, req ExecuteBatchRequest) (*models.ExecutionReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	cutoffDay := s.today()
	if req.Cutoff != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, req.Cutoff, s.loc)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid cutoff, expected YYYY-MM-DD")
		}
		cutoffDay = parsed
	}

	report := &models.ExecutionReport{
		Resultados: []models.ExecutionItemResult{},
		Errores:    []models.ExecutionItemError{},
	}

	targets, err := s.selectTargets(ctx, req.Items, cutoffDay, report)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range targets {
		e := targets[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			resultados, errores, created := s.executeEnrollment(ctx, e, cutoffDay)

			mu.Lock()
			report.Resultados = append(report.Resultados, resultados...)
			report.Errores = append(report.Errores, errores...)
			report.Created += created
			mu.Unlock()
		}()
	}
	wg.Wait()

	sortReport(report)
	report.Message = fmt.Sprintf("batch execution finished: %d verifications created", report.Created)

	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx); err != nil {
			s.logger.Warn("summary invalidation failed", zap.Error(err))
		}
	}
	return report, nil
}

// selectTargets resolves the enrollments to process: the caller's explicit
// subset, or every enrollment that currently has pending work.
func (s *VerificationService) selectTargets(ctx context.Context, items []ExecuteBatchItem, cutoff time.Time, report *models.ExecutionReport) ([]*models.Enrollment, error) {
	if len(items) > 0 {
		targets := make([]*models.Enrollment, 0, len(items))
		// Repeated items would hand the same enrollment to two workers and
		// break per-enrollment day ordering.
		seen := make(map[models.EnrollmentKey]struct{}, len(items))
		for _, item := range items {
			key := models.EnrollmentKey{ClientID: item.ClientID, ActivityName: item.ActivityName}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			e, err := s.balances.FindByKey(ctx, key)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					report.Errores = append(report.Errores, models.ExecutionItemError{
						ClientID:     item.ClientID,
						ActivityName: item.ActivityName,
						Error:        "enrollment not found",
					})
					continue
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
			}
			targets = append(targets, e)
		}
		return targets, nil
	}

	enrollments, err := s.balances.ListWithPattern(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	today := s.today()
	targets := make([]*models.Enrollment, 0, len(enrollments))
	for i := range enrollments {
		e := &enrollments[i]
		if !e.VisitWeekdays.Valid() || !e.CanConsume() || e.OverdueAt(today) {
			continue
		}
		targets = append(targets, e)
	}
	return targets, nil
}

// executeEnrollment processes one enrollment's outstanding days in ascending
// date order. The ledger insert is re-checked at execution time (not just at
// summary time) so a summary/execution race degrades into an
// "already verified" skip instead of a duplicate.
func (s *VerificationService) executeEnrollment(ctx context.Context, e *models.Enrollment, cutoff time.Time) ([]models.ExecutionItemResult, []models.ExecutionItemError, int) {
	var resultados []models.ExecutionItemResult
	var errores []models.ExecutionItemError
	created := 0

	key := e.Key()
	outstanding, err := s.outstanding(ctx, e, cutoff)
	if err != nil {
		errores = append(errores, models.ExecutionItemError{
			ClientID: key.ClientID, ActivityName: key.ActivityName, Error: fmt.Sprintf("resolve outstanding days: %v", err),
		})
		return resultados, errores, created
	}

	if e.OverdueAt(s.today()) {
		s.metrics.VerificationRejected("overdue")
		for _, day := range outstanding {
			errores = append(errores, models.ExecutionItemError{
				ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Error: reasonOverdue,
			})
		}
		return resultados, errores, created
	}

	pending := e.PendingClasses
	trial := e.IsTrialClass

	for idx, day := range outstanding {
		if ctx.Err() != nil {
			// Committed days stay committed; the next summary run picks
			// up whatever was not submitted.
			return resultados, errores, created
		}

		if pending <= 0 && !trial {
			s.metrics.VerificationRejected("insufficient_balance")
			for _, rest := range outstanding[idx:] {
				errores = append(errores, models.ExecutionItemError{
					ClientID: key.ClientID, ActivityName: key.ActivityName, Date: rest.Date, Error: reasonInsufficientBalance,
				})
			}
			break
		}

		date, err := time.ParseInLocation(models.DateLayout, day.Date, s.loc)
		if err != nil {
			errores = append(errores, models.ExecutionItemError{
				ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Error: "invalid projected date",
			})
			continue
		}

		kind := models.KindClaseRegular
		if trial {
			kind = models.KindClasePrueba
		}

		_, err = s.ledger.Insert(ctx, &models.VerificationRecord{
			ClientID:     e.ClientID,
			ClientName:   e.ClientName,
			ActivityName: e.ActivityName,
			Date:         date,
			Method:       models.MethodAutomatica,
			Kind:         kind,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateVerification) {
				resultados = append(resultados, models.ExecutionItemResult{
					ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Status: models.ExecStatusAlreadyVerified,
				})
				continue
			}
			errores = append(errores, models.ExecutionItemError{
				ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Error: fmt.Sprintf("insert verification: %v", err),
			})
			continue
		}

		var updated *models.Enrollment
		if trial {
			updated, err = s.balances.ApplyTrial(ctx, key)
		} else {
			updated, err = s.balances.ApplyRegular(ctx, key)
		}
		if err != nil {
			if errors.Is(err, repository.ErrBalanceExhausted) {
				// Record inserted but the balance refused the mutation: a
				// detectable inconsistency the next summary surfaces for
				// manual review.
				s.logger.Warn("ledger record without balance mutation",
					zap.String("client_id", key.ClientID), zap.String("activity", key.ActivityName), zap.String("date", day.Date))
				errores = append(errores, models.ExecutionItemError{
					ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Error: reasonInsufficientBalance,
				})
				pending = 0
				trial = false
				continue
			}
			errores = append(errores, models.ExecutionItemError{
				ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Error: fmt.Sprintf("update balance: %v", err),
			})
			continue
		}

		pending = updated.PendingClasses
		trial = updated.IsTrialClass
		s.metrics.VerificationCreated(string(models.MethodAutomatica), string(kind))
		created++
		resultados = append(resultados, models.ExecutionItemResult{
			ClientID: key.ClientID, ActivityName: key.ActivityName, Date: day.Date, Status: models.ExecStatusCreated,
		})
	}
	return resultados, errores, created
}

// HistoryRequest scopes ledger history queries.
type HistoryRequest struct {
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Method   string `json:"method" validate:"omitempty,oneof=presencial automatica"`
	ClientID string `json:"client_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// History lists ledger records for the requested range, newest first.
func (s *VerificationService) History(ctx context.Context, req HistoryRequest) ([]models.VerificationRecord, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history filter")
	}

	filter := models.VerificationFilter{ClientID: req.ClientID, Page: req.Page, PageSize: req.PageSize}
	if req.From != "" {
		from, _ := time.ParseInLocation(models.DateLayout, req.From, s.loc)
		filter.From = &from
	}
	if req.To != "" {
		to, _ := time.ParseInLocation(models.DateLayout, req.To, s.loc)
		filter.To = &to
	}
	if req.Method != "" {
		method := models.VerificationMethod(req.Method)
		filter.Method = &method
	}

	records, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verifications")
	}

	page, size := filter.Normalize()
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Undo deletes a mistaken ledger record and restores the balance it consumed:
// a regular class goes back to pending, a trial verification re-arms the
// trial flag.
func (s *VerificationService) Undo(ctx context.Context, id string) (*models.Enrollment, error) {
	record, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrVerificationNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification")
	}

	if err := s.ledger.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrVerificationNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete verification")
	}

	key := models.EnrollmentKey{ClientID: record.ClientID, ActivityName: record.ActivityName}
	var enrollment *models.Enrollment
	if record.Kind == models.KindClasePrueba {
		enrollment, err = s.balances.RestoreTrial(ctx, key)
	} else {
		enrollment, err = s.balances.RestoreRegular(ctx, key)
	}
	if err != nil {
		s.logger.Error("verification deleted but balance not restored",
			zap.String("verification_id", id), zap.String("client_id", key.ClientID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "verification deleted but balance not restored")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSummaries(ctx); err != nil {
			s.logger.Warn("summary invalidation failed", zap.Error(err))
		}
	}
	return enrollment, nil
}

func sortReport(report *models.ExecutionReport) {
	sort.Slice(report.Resultados, func(i, j int) bool {
		a, b := report.Resultados[i], report.Resultados[j]
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		if a.ActivityName != b.ActivityName {
			return a.ActivityName < b.ActivityName
		}
		return a.Date < b.Date
	})
	sort.Slice(report.Errores, func(i, j int) bool {
		a, b := report.Errores[i], report.Errores[j]
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		if a.ActivityName != b.ActivityName {
			return a.ActivityName < b.ActivityName
		}
		return a.Date < b.Date
	})
}
