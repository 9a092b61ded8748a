package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
)

func newTestCheckinService(ledger *mockLedger, balances *mockBalances) *CheckinService {
	return NewCheckinService(balances, ledger, nil, nil, nil, nil, time.UTC)
}

func onlyRecord(t *testing.T, ledger *mockLedger) models.VerificationRecord {
	t.Helper()
	require.Len(t, ledger.byID, 1)
	for _, rec := range ledger.byID {
		return rec
	}
	return models.VerificationRecord{}
}

func TestCheckinAutoSelectsSingleEnrollment(t *testing.T) {
	ledger := newMockLedger()
	balances := newMockBalances(pilatesEnrollment())
	svc := newTestCheckinService(ledger, balances)

	updated, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, 4, updated.PendingClasses)
	assert.Equal(t, 1, updated.CompletedClasses)

	rec := onlyRecord(t, ledger)
	assert.Equal(t, models.MethodPresencial, rec.Method)
	assert.Equal(t, models.KindClaseRegular, rec.Kind)
	assert.Equal(t, "pilates", rec.ActivityName)
}

func TestCheckinRejectsSecondVisitSameDay(t *testing.T) {
	ledger := newMockLedger()
	balances := newMockBalances(pilatesEnrollment())
	svc := newTestCheckinService(ledger, balances)

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicatePresencial.Code, appErr.Code)

	// Only the first visit consumed a class.
	after := balances.get(t, models.EnrollmentKey{ClientID: "c1", ActivityName: "pilates"})
	assert.Equal(t, 4, after.PendingClasses)
}

func TestCheckinAmbiguousWithoutActivity(t *testing.T) {
	second := pilatesEnrollment()
	second.ActivityName = "yoga"
	svc := newTestCheckinService(newMockLedger(), newMockBalances(pilatesEnrollment(), second))

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAmbiguousActivity.Code, appErr.Code)
}

func TestCheckinNamedActivityNotEnrolled(t *testing.T) {
	svc := newTestCheckinService(newMockLedger(), newMockBalances(pilatesEnrollment()))

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1", ActivityName: "crossfit"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEnrollmentNotFound.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "crossfit")
}

func TestCheckinUnknownClient(t *testing.T) {
	svc := newTestCheckinService(newMockLedger(), newMockBalances())

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "ghost"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEnrollmentNotFound.Code, appErr.Code)
}

func TestCheckinGateReportsBothReasons(t *testing.T) {
	blocked := pilatesEnrollment()
	blocked.PendingClasses = 0
	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	blocked.DueDate = &due
	svc := newTestCheckinService(newMockLedger(), newMockBalances(blocked))

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrVerificationGated.Code, appErr.Code)
	assert.Contains(t, appErr.Message, appErrors.ErrOverdue.Message)
	assert.Contains(t, appErr.Message, appErrors.ErrNoClassesRemaining.Message)
}

func TestCheckinGateOverdueOnly(t *testing.T) {
	blocked := pilatesEnrollment()
	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	blocked.DueDate = &due
	svc := newTestCheckinService(newMockLedger(), newMockBalances(blocked))

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverdue.Code, appErr.Code)
}

func TestCheckinGateNoBalanceOnly(t *testing.T) {
	blocked := pilatesEnrollment()
	blocked.PendingClasses = 0
	svc := newTestCheckinService(newMockLedger(), newMockBalances(blocked))

	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNoClassesRemaining.Code, appErr.Code)
}

func TestCheckinTrialClearsFlagWithoutCounters(t *testing.T) {
	trial := models.Enrollment{
		ClientID:      "c3",
		ClientName:    "Lucia Paz",
		ActivityName:  "yoga",
		VisitWeekdays: models.Weekdays{2},
		IsTrialClass:  true,
	}
	ledger := newMockLedger()
	svc := newTestCheckinService(ledger, newMockBalances(trial))

	updated, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c3"})
	require.NoError(t, err)

	assert.False(t, updated.IsTrialClass)
	assert.Equal(t, 0, updated.PendingClasses)
	assert.Equal(t, 0, updated.CompletedClasses)

	rec := onlyRecord(t, ledger)
	assert.Equal(t, models.KindClasePrueba, rec.Kind)
}

func TestCheckinKeepsRecordWhenBalanceRefuses(t *testing.T) {
	ledger := newMockLedger()
	balances := &refusingApplyBalances{mockBalances: newMockBalances(pilatesEnrollment())}
	svc := NewCheckinService(balances, ledger, nil, nil, nil, nil, time.UTC)

	// The gate saw a consumable balance but the guarded update matched no
	// row, as if a concurrent writer drained it in between.
	_, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNoClassesRemaining.Code, appErr.Code)

	// The ledger record stays committed for manual review; the stored
	// balance is untouched.
	rec := onlyRecord(t, ledger)
	assert.Equal(t, models.MethodPresencial, rec.Method)
	after := balances.get(t, models.EnrollmentKey{ClientID: "c1", ActivityName: "pilates"})
	assert.Equal(t, 5, after.PendingClasses)
}

func TestCheckinIgnoresAutomaticRecordSameDay(t *testing.T) {
	ledger := newMockLedger()
	balances := newMockBalances(pilatesEnrollment())
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	ledger.seed(models.VerificationRecord{
		ClientID: "c1", ActivityName: "pilates",
		Date: today, Method: models.MethodAutomatica, Kind: models.KindClaseRegular,
	})
	svc := newTestCheckinService(ledger, balances)

	// Dedup namespaces are per method: the automatic record does not block
	// the manual one.
	updated, err := svc.Verify(context.Background(), CheckinRequest{ClientID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.PendingClasses)
}

func TestCheckinRequiresClientID(t *testing.T) {
	svc := newTestCheckinService(newMockLedger(), newMockBalances())

	_, err := svc.Verify(context.Background(), CheckinRequest{})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
