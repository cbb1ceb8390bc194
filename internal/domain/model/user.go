package model

import "time"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

type User struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Alias             *string    `json:"alias,omitempty"`
	Email             string     `json:"email"` // stored lowercase
	HashedPassword    string     `json:"-"`
	Role              string     `json:"role"`
	VerificationToken *string    `json:"-"`
	IsEmailVerified   bool       `json:"is_email_verified"`
	InstitutionID     *string    `json:"institution_id,omitempty"`
	Points            int        `json:"points"`
	SolvedChallenges  int        `json:"solved_challenges"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	InstitutionName *string `json:"institution_name,omitempty"` // For display
}

// IsStaff reports whether the user may manage institution content.
func (u *User) IsStaff() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}
