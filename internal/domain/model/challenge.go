package model

import "time"

type Challenge struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Statement     string    `json:"statement"`
	HelpText      *string   `json:"help_text,omitempty"`
	Solution      string    `json:"solution,omitempty"` // Staff only view
	Level         int       `json:"level"`              // 1..5
	Score         int       `json:"score"`              // current, decays with solves
	ScoreBase     int       `json:"score_base"`
	ScoreMin      int       `json:"score_min"`
	Solves        int       `json:"solves"`
	InstitutionID *string   `json:"institution_id,omitempty"` // nil = platform-wide
	CreatedByID   *string   `json:"created_by_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	CreatedByName *string `json:"created_by_name,omitempty"` // For display
}

type ChallengeAttempt struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ChallengeID    string    `json:"challenge_id"`
	SubmittedQuery string    `json:"submitted_query"`
	IsCorrect      bool      `json:"is_correct"`
	AwardedPoints  int       `json:"awarded_points"`
	CreatedAt      time.Time `json:"created_at"`
}

type ActivityLog struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id,omitempty"`
	ChallengeID *string   `json:"challenge_id,omitempty"`
	Action      string    `json:"action"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}
