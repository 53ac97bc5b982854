package person

// CreatePersonDTO is the request payload for registering a patient.
type CreatePersonDTO struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

// UpdatePersonDTO carries a partial edit; nil fields keep their stored value.
type UpdatePersonDTO struct {
	Name  *string `json:"name,omitempty"`
	Notes *string `json:"notes,omitempty"`
}
