package user

// CreateUserDTO is the payload for provisioning an account. Role defaults to
// therapist and an empty name falls back to the email's local part.
type CreateUserDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserDTO carries an admin edit; nil fields keep their stored value.
type UpdateUserDTO struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
