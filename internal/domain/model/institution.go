package model

import "time"

type Institution struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Address            *string   `json:"address,omitempty"`
	StudentEmailSuffix string    `json:"student_email_suffix"`
	TeacherEmailSuffix string    `json:"teacher_email_suffix"`
	ContactRequestID   *string   `json:"contact_request_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ContactRequestStatus string

const (
	ContactRequestPending  ContactRequestStatus = "pending"
	ContactRequestApproved ContactRequestStatus = "approved"
	ContactRequestRejected ContactRequestStatus = "rejected"
)

func (s ContactRequestStatus) Valid() bool {
	switch s {
	case ContactRequestPending, ContactRequestApproved, ContactRequestRejected:
		return true
	}
	return false
}

type ContactRequest struct {
	ID                 string               `json:"id"`
	InstitutionName    string               `json:"institution_name"`
	ContactName        string               `json:"contact_name"`
	ContactEmail       string               `json:"contact_email"`
	ContactPhone       *string              `json:"contact_phone,omitempty"`
	StudentEmailSuffix string               `json:"student_email_suffix"`
	TeacherEmailSuffix string               `json:"teacher_email_suffix"`
	StudentCount       int                  `json:"student_count"`
	TeacherCount       int                  `json:"teacher_count"`
	Message            string               `json:"message"`
	Status             ContactRequestStatus `json:"status"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}
