package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
)

// Weekdays is a set of weekday indexes using time.Weekday numbering
// (0=Sunday .. 6=Saturday).
type Weekdays []int

// Valid returns true when the set is non-empty and every index is in range.
func (w Weekdays) Valid() bool {
	if len(w) == 0 {
		return false
	}
	for _, d := range w {
		if d < 0 || d > 6 {
			return false
		}
	}
	return true
}

// Contains reports whether the given weekday belongs to the set.
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

// Scan implements sql.Scanner backed by a postgres int array.
func (w *Weekdays) Scan(src interface{}) error {
	var arr pq.Int64Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	out := make(Weekdays, 0, len(arr))
	for _, v := range arr {
		out = append(out, int(v))
	}
	*w = out
	return nil
}

// Value implements driver.Valuer backed by a postgres int array.
func (w Weekdays) Value() (driver.Value, error) {
	arr := make(pq.Int64Array, 0, len(w))
	for _, v := range w {
		arr = append(arr, int64(v))
	}
	return arr.Value()
}

// EnrollmentKey identifies an enrollment across all stores.
type EnrollmentKey struct {
	ClientID     string `json:"client_id"`
	ActivityName string `json:"activity_name"`
}

// Enrollment is a client's registration in one activity together with its
// weekly visit pattern and class balance. Owned by the balance store and
// mutated only through the executor, the manual gate or regularization.
type Enrollment struct {
	ClientID         string     `db:"client_id" json:"client_id"`
	ClientName       string     `db:"client_name" json:"client_name"`
	ActivityName     string     `db:"activity_name" json:"activity_name"`
	VisitWeekdays    Weekdays   `db:"visit_weekdays" json:"visit_weekdays"`
	PendingClasses   int        `db:"pending_classes" json:"pending_classes"`
	CompletedClasses int        `db:"completed_classes" json:"completed_classes"`
	IsTrialClass     bool       `db:"is_trial_class" json:"is_trial_class"`
	DueDate          *time.Time `db:"due_date" json:"due_date,omitempty"`
	LastUpdated      time.Time  `db:"last_updated" json:"last_updated"`
}

// Key returns the composite enrollment identity.
func (e *Enrollment) Key() EnrollmentKey {
	return EnrollmentKey{ClientID: e.ClientID, ActivityName: e.ActivityName}
}

// OverdueAt reports whether the due date lies strictly before the given
// calendar day. Enrollments without a due date are never overdue.
func (e *Enrollment) OverdueAt(today time.Time) bool {
	if e.DueDate == nil {
		return false
	}
	due := time.Date(e.DueDate.Year(), e.DueDate.Month(), e.DueDate.Day(), 0, 0, 0, 0, today.Location())
	return due.Before(today)
}

// CanConsume reports whether the enrollment can absorb one more verification:
// either it has pending classes left or it is still a trial enrollment.
func (e *Enrollment) CanConsume() bool {
	return e.PendingClasses > 0 || e.IsTrialClass
}

// EnrollmentFilter scopes balance-store listings.
type EnrollmentFilter struct {
	ClientID     string
	ActivityName string
	Page         int
	PageSize     int
}

// Normalize returns the effective page and page size shared by the query and
// the pagination metadata. Sizes outside (0, 200] fall back to 50.
func (f EnrollmentFilter) Normalize() (int, int) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return page, size
}

// SourceActivity is one row of the external client/activity source. The
// source is authoritative for the visit pattern, the client name, the due
// date and the initial pending balance.
type SourceActivity struct {
	ClientID       string     `db:"client_id" json:"client_id"`
	ClientName     string     `db:"client_name" json:"client_name"`
	ActivityName   string     `db:"activity_name" json:"activity_name"`
	VisitWeekdays  Weekdays   `db:"visit_weekdays" json:"visit_weekdays"`
	MonthlyClasses int        `db:"monthly_classes" json:"monthly_classes"`
	IsTrialClass   bool       `db:"is_trial_class" json:"is_trial_class"`
	DueDate        *time.Time `db:"due_date" json:"due_date,omitempty"`
}
