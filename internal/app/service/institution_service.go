package service

import (
	"context"
	"errors"
	"fmt"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InstitutionService struct {
	institutionRepo repository.InstitutionRepository
	contactRepo     repository.ContactRequestRepository
	txs             repository.TxBeginner
	validate        *validator.Validate
	logger          *zap.SugaredLogger
}

func NewInstitutionService(
	institutionRepo repository.InstitutionRepository,
	contactRepo repository.ContactRequestRepository,
	txs repository.TxBeginner,
	logger *zap.SugaredLogger,
) *InstitutionService {
	return &InstitutionService{
		institutionRepo: institutionRepo,
		contactRepo:     contactRepo,
		txs:             txs,
		validate:        validator.New(),
		logger:          logger,
	}
}

type CreateInstitutionRequest struct {
	Name               string  `json:"name" validate:"required"`
	Address            *string `json:"address,omitempty"`
	StudentEmailSuffix string  `json:"student_email_suffix" validate:"required,startswith=@"`
	TeacherEmailSuffix string  `json:"teacher_email_suffix" validate:"required,startswith=@"`
}

func (s *InstitutionService) Create(ctx context.Context, req CreateInstitutionRequest) (*model.Institution, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}

	inst := &model.Institution{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Address:            req.Address,
		StudentEmailSuffix: req.StudentEmailSuffix,
		TeacherEmailSuffix: req.TeacherEmailSuffix,
	}
	if err := s.institutionRepo.Create(ctx, nil, inst); err != nil {
		return nil, fmt.Errorf("failed to create institution: %w", err)
	}
	return inst, nil
}

func (s *InstitutionService) Update(ctx context.Context, id string, req CreateInstitutionRequest) (*model.Institution, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}

	inst, err := s.institutionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inst.Name = req.Name
	inst.Address = req.Address
	inst.StudentEmailSuffix = req.StudentEmailSuffix
	inst.TeacherEmailSuffix = req.TeacherEmailSuffix

	if err := s.institutionRepo.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update institution: %w", err)
	}
	return inst, nil
}

func (s *InstitutionService) Get(ctx context.Context, id string) (*model.Institution, error) {
	return s.institutionRepo.FindByID(ctx, id)
}

func (s *InstitutionService) ListAll(ctx context.Context) ([]model.Institution, error) {
	return s.institutionRepo.ListAll(ctx)
}

type DeleteInstitutionResult struct {
	DeletedUsers      int `json:"deletedUsers"`
	DeletedChallenges int `json:"deletedChallenges"`
}

// Delete removes an institution and all dependent rows in one transaction.
// The reported counts are taken before the cascade runs.
func (s *InstitutionService) Delete(ctx context.Context, id string) (*DeleteInstitutionResult, error) {
	if _, err := s.institutionRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	users, challenges, err := s.institutionRepo.CountDependents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count dependents: %w", err)
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.institutionRepo.DeleteCascade(ctx, tx, id); err != nil {
		return nil, fmt.Errorf("failed to delete institution: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Infow("institution deleted", "institution_id", id, "users", users, "challenges", challenges)
	return &DeleteInstitutionResult{DeletedUsers: users, DeletedChallenges: challenges}, nil
}

type CreateContactRequestRequest struct {
	InstitutionName    string  `json:"institution_name" validate:"required"`
	ContactName        string  `json:"contact_name" validate:"required"`
	ContactEmail       string  `json:"contact_email" validate:"required,email"`
	ContactPhone       *string `json:"contact_phone,omitempty"`
	StudentEmailSuffix string  `json:"student_email_suffix" validate:"required,startswith=@"`
	TeacherEmailSuffix string  `json:"teacher_email_suffix" validate:"required,startswith=@"`
	StudentCount       int     `json:"student_count" validate:"gte=0"`
	TeacherCount       int     `json:"teacher_count" validate:"gte=0"`
	Message            string  `json:"message"`
}

func (s *InstitutionService) CreateContactRequest(ctx context.Context, req CreateContactRequestRequest) (*model.ContactRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}

	cr := &model.ContactRequest{
		ID:                 uuid.NewString(),
		InstitutionName:    req.InstitutionName,
		ContactName:        req.ContactName,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		StudentEmailSuffix: req.StudentEmailSuffix,
		TeacherEmailSuffix: req.TeacherEmailSuffix,
		StudentCount:       req.StudentCount,
		TeacherCount:       req.TeacherCount,
		Message:            req.Message,
		Status:             model.ContactRequestPending,
	}
	if err := s.contactRepo.Create(ctx, cr); err != nil {
		return nil, fmt.Errorf("failed to create contact request: %w", err)
	}
	return cr, nil
}

func (s *InstitutionService) ListContactRequests(ctx context.Context, page, pageSize int, status model.ContactRequestStatus) ([]model.ContactRequest, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("invalid contact request status %q: %w", status, common.ErrValidation)
	}
	return s.contactRepo.List(ctx, pageSize, (page-1)*pageSize, status)
}

// SetContactRequestStatus transitions a request. Approval provisions the
// institution from the request's stored fields; the institution row is keyed
// by the request id, so approving the same request again reuses the existing
// institution instead of creating a duplicate.
func (s *InstitutionService) SetContactRequestStatus(ctx context.Context, id string, status model.ContactRequestStatus) (*model.ContactRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid contact request status %q: %w", status, common.ErrValidation)
	}

	cr, err := s.contactRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if status != model.ContactRequestApproved {
		if err := s.contactRepo.UpdateStatus(ctx, nil, id, status); err != nil {
			return nil, err
		}
		cr.Status = status
		return cr, nil
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.contactRepo.UpdateStatus(ctx, tx, id, status); err != nil {
		return nil, err
	}

	if _, err := s.institutionRepo.FindByContactRequestID(ctx, id); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to check existing institution: %w", err)
		}
		inst := &model.Institution{
			ID:                 uuid.NewString(),
			Name:               cr.InstitutionName,
			StudentEmailSuffix: cr.StudentEmailSuffix,
			TeacherEmailSuffix: cr.TeacherEmailSuffix,
			ContactRequestID:   &cr.ID,
		}
		if err := s.institutionRepo.Create(ctx, tx, inst); err != nil {
			return nil, fmt.Errorf("failed to provision institution: %w", err)
		}
		s.logger.Infow("institution provisioned from contact request", "request_id", id, "institution_id", inst.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	cr.Status = status
	return cr, nil
}
