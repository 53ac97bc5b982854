package dashboard

import (
	"github.com/icastillejo/practice-management/internal/person"
	"github.com/icastillejo/practice-management/internal/session"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterPending Filter = "pending"
	FilterPaid    Filter = "paid"
)

// Group is one patient's card on the dashboard: the patient, the sessions
// that survive the filter, and the totals over those sessions.
type Group struct {
	Person       *person.Person     `json:"person"`
	Sessions     []*session.Session `json:"sessions"`
	PendingTotal float64            `json:"pending_total"`
	PaidTotal    float64            `json:"paid_total"`
}

// View is the assembled dashboard. Total counts the sessions shown across
// all groups.
type View struct {
	Filter      Filter   `json:"filter"`
	AllowDelete bool     `json:"allow_delete"`
	Groups      []*Group `json:"groups"`
	Total       int      `json:"total"`
}

// Stats summarizes the practice: payment totals over visible sessions and
// the active patient count.
type Stats struct {
	PendingTotal   float64 `json:"pending_total"`
	PaidTotal      float64 `json:"paid_total"`
	GrandTotal     float64 `json:"grand_total"`
	ActivePatients int     `json:"active_patients"`
}
