package models

import "time"

// Field bounds for admission records. The referral code bound also caps the
// generated code length.
const (
	AdmissionNameMaxLen        = 100
	AdmissionDescriptionMaxLen = 500
	ReferralCodeMaxLen         = 20
	StudentIDMaxLen            = 20
)

// AdmissionType categorises a campaign (undergraduate, transfer, master's,
// doctoral). Created at seed time or by an admin; immutable afterwards.
type AdmissionType struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Admission is one enrollment campaign. Finished flips false->true exactly
// once when staff close the campaign; Rose is the reward granted to envoys
// per successful referral.
type Admission struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	Finished    bool      `db:"finished" json:"finished"`
	Rose        int       `db:"rose" json:"rose"`
	TypeID      string    `db:"type_id" json:"type_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AdmissionDetail enriches Admission with the type name for listings.
type AdmissionDetail struct {
	Admission
	TypeName string `db:"type_name" json:"type_name"`
}

// CreateAdmissionRequest is the staff payload for opening a campaign.
type CreateAdmissionRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description" validate:"required,max=500"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Rose        int       `json:"rose" validate:"required,min=0"`
	TypeID      string    `json:"type_id" validate:"required,uuid4"`
}

// UpdateAdmissionRequest carries the editable campaign fields.
type UpdateAdmissionRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description" validate:"required,max=500"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Rose        int       `json:"rose" validate:"required,min=0"`
}
