package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/icastillejo/practice-management/internal/core/datamodel"
	sessionDatamodel "github.com/icastillejo/practice-management/internal/core/datamodel/therapysession"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component. It travels on the wire
// as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Format(dateLayout))), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Session is a billable therapy session. UserID mirrors the owning
// practitioner of the patient the session belongs to.
type Session struct {
	ID          int64      `json:"id"`
	PersonID    int64      `json:"person_id"`
	UserID      int64      `json:"user_id"`
	SessionDate Date       `json:"session_date"`
	Price       float64    `json:"session_price"`
	Pending     bool       `json:"pending"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	DeletedByID *int64     `json:"deleted_by_id,omitempty"`
}

func (s *Session) IsDeleted() bool {
	return s.DeletedAt != nil
}

func (s *Session) IsPaid() bool {
	return !s.Pending
}

// PersonRef is the slice of a patient a session needs: identity, owner and
// display name.
type PersonRef struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

// RecentSession is a session row joined with its patient's name, for the
// recent-activity panel.
type RecentSession struct {
	ID          int64     `json:"id"`
	PersonID    int64     `json:"person_id"`
	PersonName  string    `json:"person_name"`
	SessionDate Date      `json:"session_date"`
	Price       float64   `json:"session_price"`
	Pending     bool      `json:"pending"`
	CreatedAt   time.Time `json:"created_at"`
}

// Totals aggregates visible session prices by payment state.
type Totals struct {
	PendingTotal float64 `json:"pending_total"`
	PaidTotal    float64 `json:"paid_total"`
	GrandTotal   float64 `json:"grand_total"`
}

// PatientSessions is the detail view of one patient's sessions.
type PatientSessions struct {
	Sessions []*Session `json:"sessions"`
	Totals   *Totals    `json:"totals"`
}

func ToDataModel(s *Session) *sessionDatamodel.TherapySession {
	return &sessionDatamodel.TherapySession{
		ID:          s.ID,
		PersonID:    s.PersonID,
		UserID:      s.UserID,
		SessionDate: s.SessionDate.Time,
		Price:       s.Price,
		Pending:     s.Pending,
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		DeletionStatus: datamodel.DeletionStatus{
			DeletedAt:   s.DeletedAt,
			DeletedByID: s.DeletedByID,
		},
	}
}

func FromDataModel(row *sessionDatamodel.TherapySession) *Session {
	return &Session{
		ID:          row.ID,
		PersonID:    row.PersonID,
		UserID:      row.UserID,
		SessionDate: Date{row.SessionDate},
		Price:       row.Price,
		Pending:     row.Pending,
		Notes:       row.Notes,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		DeletedAt:   row.DeletedAt,
		DeletedByID: row.DeletedByID,
	}
}

func FromDataModelSlice(rows []*sessionDatamodel.TherapySession) []*Session {
	result := make([]*Session, len(rows))
	for i, row := range rows {
		result[i] = FromDataModel(row)
	}
	return result
}
