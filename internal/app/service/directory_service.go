package service

import (
	"context"
	"fmt"
	"strings"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"
)

// DirectoryService resolves email addresses against the institution
// directory: which institution an address belongs to and whether it marks a
// student or a teacher.
type DirectoryService struct {
	institutionRepo repository.InstitutionRepository
}

func NewDirectoryService(institutionRepo repository.InstitutionRepository) *DirectoryService {
	return &DirectoryService{institutionRepo: institutionRepo}
}

// Resolution is the outcome of matching an email against the directory. Both
// fields are zero when nothing matched.
type Resolution struct {
	Institution *model.Institution
	Role        string
}

// ResolveEmail matches email against the directory in listing order. Within
// an institution the student suffix is tested before the teacher suffix; the
// first matching institution wins. Overlapping suffixes between institutions
// are not prevented, so the listing order is the tie-break.
func ResolveEmail(directory []model.Institution, email string) Resolution {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return Resolution{}
	}
	for i := range directory {
		inst := &directory[i]
		if suffixMatches(normalized, inst.StudentEmailSuffix) {
			return Resolution{Institution: inst, Role: model.RoleStudent}
		}
		if suffixMatches(normalized, inst.TeacherEmailSuffix) {
			return Resolution{Institution: inst, Role: model.RoleTeacher}
		}
	}
	return Resolution{}
}

func suffixMatches(email, suffix string) bool {
	if suffix == "" {
		return false
	}
	return strings.HasSuffix(email, strings.ToLower(suffix))
}

type EmailValidationResult struct {
	IsValid     bool               `json:"isValid"`
	Message     string             `json:"message"`
	Institution *model.Institution `json:"institution,omitempty"`
	Role        string             `json:"role,omitempty"`
}

// ValidateEmail wraps ResolveEmail with the human-readable result the
// registration form shows. An unrecognized domain is the signal for the
// "request institution access" path, not an error.
func (s *DirectoryService) ValidateEmail(ctx context.Context, email string) (*EmailValidationResult, error) {
	directory, err := s.institutionRepo.ListAll(ctx)
	if err != nil {
		return nil, common.Errorf("failed to load institution directory: %w", err)
	}

	res := ResolveEmail(directory, email)
	if res.Institution == nil {
		return &EmailValidationResult{
			IsValid: false,
			Message: "This email domain is not recognized. Ask your institution to request access.",
		}, nil
	}
	return &EmailValidationResult{
		IsValid:     true,
		Message:     fmt.Sprintf("Email recognized: %s at %s.", res.Role, res.Institution.Name),
		Institution: res.Institution,
		Role:        res.Role,
	}, nil
}
