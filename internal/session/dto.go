package session

// CreateSessionDTO is the request payload for scheduling a session. Pending
// defaults to true when absent from the body.
type CreateSessionDTO struct {
	PersonID    int64    `json:"person_id"`
	SessionDate string   `json:"session_date"`
	Price       *float64 `json:"session_price"`
	Pending     *bool    `json:"pending"`
	Notes       string   `json:"notes,omitempty"`
}

// UpdateSessionDTO carries a partial edit; nil fields keep their stored value.
type UpdateSessionDTO struct {
	SessionDate *string  `json:"session_date,omitempty"`
	Price       *float64 `json:"session_price,omitempty"`
	Pending     *bool    `json:"pending,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}
