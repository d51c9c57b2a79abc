package dto

// ResetIdentity is the set of facts proving account ownership without a password.
type ResetIdentity struct {
	Username  string `json:"username" form:"username" validate:"required"`
	Email     string `json:"email" form:"email" validate:"required"`
	BirthDate string `json:"birth_date" form:"birth_date" validate:"required"`
}

// ConfirmResetRequest re-supplies the identity together with the new password.
type ConfirmResetRequest struct {
	ResetIdentity
	NewPassword string `json:"new_password" form:"new_password" validate:"required"`
}
