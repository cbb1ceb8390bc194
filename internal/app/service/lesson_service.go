package service

import (
	"context"
	"fmt"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"

	"github.com/google/uuid"
)

type LessonService struct {
	lessonRepo repository.LessonRepository
	userRepo   repository.UserRepository
}

func NewLessonService(lessonRepo repository.LessonRepository, userRepo repository.UserRepository) *LessonService {
	return &LessonService{lessonRepo: lessonRepo, userRepo: userRepo}
}

type CreateLessonRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Content       string  `json:"content"`
	SortOrder     int     `json:"sort_order"`
	InstitutionID *string `json:"institution_id,omitempty"` // admins must name one
}

type UpdateLessonRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

func (s *LessonService) Create(ctx context.Context, callerID string, req CreateLessonRequest) (*model.Lesson, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	institutionID, err := resolveContentScope(caller, req.InstitutionID)
	if err != nil {
		return nil, err
	}
	if institutionID == nil {
		// Lessons always belong to an institution, unlike challenges.
		return nil, fmt.Errorf("institution_id is required: %w", common.ErrValidation)
	}

	lesson := &model.Lesson{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Content:       req.Content,
		SortOrder:     req.SortOrder,
		IsPublished:   false,
		InstitutionID: *institutionID,
		CreatedByID:   &caller.ID,
	}
	if err := s.lessonRepo.Create(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}
	return lesson, nil
}

func (s *LessonService) Update(ctx context.Context, callerID, id string, req UpdateLessonRequest) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	if err := checkContentAccess(caller, &lesson.InstitutionID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Description != nil {
		lesson.Description = *req.Description
	}
	if req.Content != nil {
		lesson.Content = *req.Content
	}
	if req.SortOrder != nil {
		lesson.SortOrder = *req.SortOrder
	}

	if err := s.lessonRepo.Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to update lesson: %w", err)
	}
	return lesson, nil
}

// SetPublished toggles visibility independently of content edits.
func (s *LessonService) SetPublished(ctx context.Context, callerID, id string, published bool) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	if err := checkContentAccess(caller, &lesson.InstitutionID); err != nil {
		return nil, err
	}
	if err := s.lessonRepo.SetPublished(ctx, id, published); err != nil {
		return nil, err
	}
	lesson.IsPublished = published
	return lesson, nil
}

func (s *LessonService) Delete(ctx context.Context, callerID, id string) error {
	lesson, err := s.lessonRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("failed to load caller: %w", err)
	}
	if err := checkContentAccess(caller, &lesson.InstitutionID); err != nil {
		return err
	}
	return s.lessonRepo.Delete(ctx, id)
}

// List returns lessons for an institution. Students only see published ones.
func (s *LessonService) List(ctx context.Context, page, pageSize int, institutionID, callerRole string) ([]model.Lesson, int, error) {
	publishedOnly := callerRole == model.RoleStudent
	return s.lessonRepo.List(ctx, pageSize, (page-1)*pageSize, institutionID, publishedOnly)
}

func (s *LessonService) Get(ctx context.Context, id, callerRole string) (*model.Lesson, error) {
	lesson, err := s.lessonRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerRole == model.RoleStudent && !lesson.IsPublished {
		return nil, common.ErrNotFound
	}
	return lesson, nil
}
