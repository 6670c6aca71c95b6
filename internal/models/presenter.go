package models

import "time"

// AdmissionPresenter records one user acting as envoy for one campaign.
// The (admission_id, user_id) pair is unique: a user is an envoy at most once
// per campaign. The referral code is globally unique so a code alone resolves
// both the campaign and the referring envoy.
//
// UserJoinedTime is nil while the envoy's participation awaits staff approval.
type AdmissionPresenter struct {
	ID             string     `db:"id" json:"id"`
	ReferralCode   string     `db:"referral_code" json:"referral_code"`
	UserID         string     `db:"user_id" json:"user_id"`
	AdmissionID    string     `db:"admission_id" json:"admission_id"`
	UserJoinedTime *time.Time `db:"user_joined_time" json:"user_joined_time,omitempty"`
}

// Approved reports whether staff have confirmed the envoy's participation.
func (p *AdmissionPresenter) Approved() bool {
	return p.UserJoinedTime != nil
}

// PresenterDetail enriches the pairing with envoy identity for staff listings.
type PresenterDetail struct {
	AdmissionPresenter
	EnvoyName  string `db:"envoy_name" json:"envoy_name"`
	EnvoyEmail string `db:"envoy_email" json:"envoy_email"`
}

// StudentPresenter attributes one student enrollment to one envoy-campaign
// pairing. The composite (student_id, presenter_id) key prevents the same
// student re-registering under the same envoy; rows cascade away with their
// presenter.
//
// StudentPaidTime flips nil -> timestamp when the student completes enrollment
// payment; the transition is append-only.
type StudentPresenter struct {
	StudentID         string     `db:"student_id" json:"student_id"`
	PresenterID       string     `db:"presenter_id" json:"presenter_id"`
	StudentJoinedTime time.Time  `db:"student_joined_time" json:"student_joined_time"`
	StudentPaidTime   *time.Time `db:"student_paid_time" json:"student_paid_time,omitempty"`
}

// Paid reports whether the student has completed enrollment payment.
func (s *StudentPresenter) Paid() bool {
	return s.StudentPaidTime != nil
}

// StudentDetail joins the enrollment with its referring envoy for rosters.
type StudentDetail struct {
	StudentPresenter
	ReferralCode string `db:"referral_code" json:"referral_code"`
	EnvoyName    string `db:"envoy_name" json:"envoy_name"`
}

// ApplyRequest is the public payload submitted from a shared referral link.
type ApplyRequest struct {
	ReferralCode string `json:"referral_code" form:"referral_code" validate:"required,max=20"`
	StudentID    string `json:"student_id" form:"student_id" validate:"required,max=20"`
}
