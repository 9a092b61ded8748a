package models

import "time"

// DateLayout is the wire and map-key format for calendar dates.
const DateLayout = "2006-01-02"

// VerificationMethod distinguishes how a verification record was produced.
type VerificationMethod string

const (
	MethodPresencial VerificationMethod = "presencial"
	MethodAutomatica VerificationMethod = "automatica"
)

// Valid returns true when the method is a supported value.
func (m VerificationMethod) Valid() bool {
	return m == MethodPresencial || m == MethodAutomatica
}

// VerificationKind distinguishes regular classes from trial classes.
type VerificationKind string

const (
	KindClaseRegular VerificationKind = "clase_regular"
	KindClasePrueba  VerificationKind = "clase_prueba"
)

// Valid returns true when the kind is a supported value.
func (k VerificationKind) Valid() bool {
	return k == KindClaseRegular || k == KindClasePrueba
}

// VerificationRecord is one immutable ledger entry. The only later operation
// permitted on it is administrative deletion, which restores the balance it
// consumed.
type VerificationRecord struct {
	ID           string             `db:"id" json:"id"`
	ClientID     string             `db:"client_id" json:"client_id"`
	ClientName   string             `db:"client_name" json:"client_name"`
	ActivityName string             `db:"activity_name" json:"activity_name"`
	Date         time.Time          `db:"date" json:"date"`
	Method       VerificationMethod `db:"method" json:"method"`
	Kind         VerificationKind   `db:"kind" json:"kind"`
	VerifiedAt   time.Time          `db:"verified_at" json:"verified_at"`
}

// VerificationFilter scopes ledger history queries.
type VerificationFilter struct {
	From     *time.Time
	To       *time.Time
	Method   *VerificationMethod
	ClientID string
	Page     int
	PageSize int
}

// Normalize returns the effective page and page size. Both the query and the
// pagination metadata must use these values so the response never claims a
// size the query did not apply. Sizes outside (0, 500] fall back to 50.
func (f VerificationFilter) Normalize() (int, int) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	return page, size
}

// OutstandingDay is a projected calendar date that still has no automatic
// verification record.
type OutstandingDay struct {
	Date    string `json:"date"`
	Weekday int    `json:"weekday"`
}

// EnrollmentSummaryRow is one line of the pending-work summary.
type EnrollmentSummaryRow struct {
	ClientID        string           `json:"client_id"`
	ClientName      string           `json:"client_name"`
	ActivityName    string           `json:"activity_name"`
	PendingClasses  int              `json:"pending_classes"`
	IsTrialClass    bool             `json:"is_trial_class"`
	VisitWeekdays   Weekdays         `json:"visit_weekdays"`
	HasPendingWork  bool             `json:"has_pending_work"`
	OutstandingDays []OutstandingDay `json:"outstanding_days"`
}

// SummaryResult is the pending-work summary for one cutoff date.
type SummaryResult struct {
	Cutoff               string                 `json:"cutoff"`
	Resumen              []EnrollmentSummaryRow `json:"resumen"`
	CountWithPendingWork int                    `json:"count_with_pending_work"`
	Warnings             []string               `json:"warnings,omitempty"`
}

// Execution statuses for individual batch days.
const (
	ExecStatusCreated         = "created"
	ExecStatusAlreadyVerified = "already_verified"
)

// ExecutionItemResult is one successfully handled day in a batch run.
type ExecutionItemResult struct {
	ClientID     string `json:"client_id"`
	ActivityName string `json:"activity_name"`
	Date         string `json:"date"`
	Status       string `json:"status"`
}

// ExecutionItemError is one rejected or failed day in a batch run.
type ExecutionItemError struct {
	ClientID     string `json:"client_id"`
	ActivityName string `json:"activity_name"`
	Date         string `json:"date"`
	Error        string `json:"error"`
}

// ExecutionReport aggregates the outcome of a batch execution so the caller
// can render a reconciliation log.
type ExecutionReport struct {
	Message    string                `json:"message"`
	Created    int                   `json:"created"`
	Resultados []ExecutionItemResult `json:"resultados"`
	Errores    []ExecutionItemError  `json:"errores"`
}
