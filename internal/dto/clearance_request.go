package dto

import "time"

// ClearanceRequestInput carries client-writable request fields. Nil means "not supplied".
// The owner is never read from input; it comes from the authenticated caller.
type ClearanceRequestInput struct {
	YearLevel       *string `json:"year_level" form:"year_level" validate:"omitempty,max=50"`
	College         *string `json:"college" form:"college" validate:"omitempty,max=100"`
	Program         *string `json:"program" form:"program" validate:"omitempty,max=100"`
	Affiliation     *string `json:"affiliation" form:"affiliation" validate:"omitempty,oneof=Student Alumni"`
	Request         *string `json:"request" form:"request" validate:"omitempty,max=255"`
	ClearanceStatus *bool   `json:"clearance_status" form:"clearance_status"`
	IsGraduate      *bool   `json:"is_graduate" form:"is_graduate"`
	LastAttended    *string `json:"last_attended" form:"last_attended" validate:"omitempty,max=100"`
	RequestPurpose  *string `json:"request_purpose" form:"request_purpose" validate:"omitempty,max=100"`
	RequestStatus   *string `json:"request_status" form:"request_status" validate:"omitempty,max=50"`
	ClaimDate       *string `json:"claim_date" form:"claim_date"`
}

// ClearanceRequestView is a request enriched with owner display fields. Proof
// fields always hold absolute URLs; the stored relative paths never leave the service.
type ClearanceRequestView struct {
	ID                 int64      `json:"id"`
	User               int64      `json:"user"`
	Username           string     `json:"username"`
	FullName           string     `json:"full_name"`
	BirthDate          *string    `json:"birth_date"`
	Email              string     `json:"email"`
	ContactNumber      *string    `json:"contact_number"`
	YearLevel          string     `json:"year_level"`
	College            string     `json:"college"`
	Program            string     `json:"program"`
	Affiliation        string     `json:"affiliation"`
	Request            string     `json:"request"`
	ClearanceStatus    bool       `json:"clearance_status"`
	IsGraduate         bool       `json:"is_graduate"`
	LastAttended       string     `json:"last_attended"`
	RequestPurpose     string     `json:"request_purpose"`
	RequestStatus      string     `json:"request_status"`
	ClaimDate          *time.Time `json:"claim_date"`
	EClearanceProof    *string    `json:"eclearance_proof"`
	EClearanceProofURL *string    `json:"eclearance_proof_url"`
	PaymentProof       *string    `json:"payment_proof"`
	PaymentProofURL    *string    `json:"payment_proof_url"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// RequestStats summarises request counts for the staff dashboard.
type RequestStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	// Cached reports whether the counts came from the stats cache.
	Cached bool `json:"-"`
}

// ExportFormat selects the rendered export type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
