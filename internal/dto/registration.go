package dto

// RegisterRequest is the self-service registration payload.
type RegisterRequest struct {
	Username       string `json:"username" form:"username" validate:"required,max=150"`
	Email          string `json:"email" form:"email" validate:"required,email,max=254"`
	Password       string `json:"password" form:"password" validate:"required"`
	FirstName      string `json:"first_name" form:"first_name" validate:"required,max=100"`
	MiddleName     string `json:"middle_name" form:"middle_name" validate:"max=100"`
	LastName       string `json:"last_name" form:"last_name" validate:"required,max=100"`
	ExtensionName  string `json:"extension_name" form:"extension_name" validate:"max=10"`
	BirthDate      string `json:"birth_date" form:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	CollegeProgram string `json:"college_program" form:"college_program" validate:"max=100"`
	ContactNumber  string `json:"contact_number" form:"contact_number" validate:"max=20"`
}

// ProfileView is the normalized profile returned to clients.
type ProfileView struct {
	FirstName      string  `json:"first_name"`
	MiddleName     string  `json:"middle_name"`
	LastName       string  `json:"last_name"`
	ExtensionName  string  `json:"extension_name"`
	FullName       string  `json:"full_name"`
	BirthDate      *string `json:"birth_date"`
	CollegeProgram *string `json:"college_program"`
	ContactNumber  *string `json:"contact_number"`
}

// RegisterResponse summarises the created account.
type RegisterResponse struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Profile  ProfileView `json:"profile"`
}
