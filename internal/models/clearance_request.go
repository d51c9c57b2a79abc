package models

import "time"

// Known request_status values used by the staff workflow. The column itself is free-form.
const (
	StatusPending   = "Pending"
	StatusToPay     = "To Pay"
	StatusConfirmed = "Confirmed"
	StatusReleased  = "Released"
	StatusRejected  = "Rejected"
)

// WorkflowStatuses lists the dashboard buckets in display order.
var WorkflowStatuses = []string{StatusPending, StatusToPay, StatusConfirmed, StatusReleased, StatusRejected}

const (
	AffiliationStudent = "Student"
	AffiliationAlumni  = "Alumni"
)

// ClearanceRequest is a student's document/clearance request.
type ClearanceRequest struct {
	ID              int64      `db:"id" json:"id"`
	UserID          int64      `db:"user_id" json:"user"`
	YearLevel       string     `db:"year_level" json:"year_level"`
	College         string     `db:"college" json:"college"`
	Program         string     `db:"program" json:"program"`
	Affiliation     string     `db:"affiliation" json:"affiliation"`
	Request         string     `db:"request" json:"request"`
	ClearanceStatus bool       `db:"clearance_status" json:"clearance_status"`
	IsGraduate      bool       `db:"is_graduate" json:"is_graduate"`
	LastAttended    string     `db:"last_attended" json:"last_attended"`
	RequestPurpose  string     `db:"request_purpose" json:"request_purpose"`
	RequestStatus   string     `db:"request_status" json:"request_status"`
	ClaimDate       *time.Time `db:"claim_date" json:"claim_date"`
	EClearanceProof *string    `db:"eclearance_proof" json:"eclearance_proof"`
	PaymentProof    *string    `db:"payment_proof" json:"payment_proof"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ClearanceRequestRecord is a request joined with its owner's account and profile.
type ClearanceRequestRecord struct {
	ClearanceRequest
	Username string
	Email    string
	Profile  *Profile
}

// ClearanceRequestFilter narrows repository listings.
type ClearanceRequestFilter struct {
	Scope   AccessScope
	OwnerID int64
	Status  string
}

// StatusCount is one row of the per-status aggregate.
type StatusCount struct {
	Status string `db:"request_status" json:"status"`
	Count  int    `db:"count" json:"count"`
}
