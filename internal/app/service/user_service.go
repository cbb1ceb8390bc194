package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"query_quest/internal/common"
	"query_quest/internal/common/security"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/email"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo  repository.UserRepository
	directory *DirectoryService
	emailSvc  email.Service
	txs       repository.TxBeginner
	logger    *zap.SugaredLogger

	importPasswordBytes int
}

func NewUserService(
	userRepo repository.UserRepository,
	directory *DirectoryService,
	emailSvc email.Service,
	txs repository.TxBeginner,
	logger *zap.SugaredLogger,
	importPasswordBytes int,
) *UserService {
	return &UserService{
		userRepo:            userRepo,
		directory:           directory,
		emailSvc:            emailSvc,
		txs:                 txs,
		logger:              logger,
		importPasswordBytes: importPasswordBytes,
	}
}

func (s *UserService) List(ctx context.Context, page, pageSize int, institutionID, role, searchTerm string) ([]model.User, int, error) {
	if role != "" && role != model.RoleStudent && role != model.RoleTeacher && role != model.RoleAdmin {
		return nil, 0, fmt.Errorf("invalid role filter %q: %w", role, common.ErrValidation)
	}
	users, total, err := s.userRepo.List(ctx, pageSize, (page-1)*pageSize, institutionID, role, searchTerm)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i].HashedPassword = ""
		users[i].VerificationToken = nil
	}
	return users, total, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

type UpdateUserRequest struct {
	Name          *string `json:"name,omitempty"`
	Alias         *string `json:"alias,omitempty"`
	Role          *string `json:"role,omitempty"`
	InstitutionID *string `json:"institution_id,omitempty"`
}

func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("name must not be empty: %w", common.ErrValidation)
		}
		user.Name = *req.Name
	}
	if req.Alias != nil {
		user.Alias = req.Alias
	}
	if req.Role != nil {
		switch *req.Role {
		case model.RoleStudent, model.RoleTeacher, model.RoleAdmin:
			user.Role = *req.Role
		default:
			return nil, fmt.Errorf("invalid role %q: %w", *req.Role, common.ErrValidation)
		}
	}
	if req.InstitutionID != nil {
		user.InstitutionID = req.InstitutionID
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// Delete removes an account together with its attempts and logs. Lessons and
// challenges the account created survive without a creator reference.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		return err
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.userRepo.DeleteCascade(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

type ImportResult struct {
	Created int      `json:"created"`
	Skipped []string `json:"skipped"` // one reason per skipped row
}

// ImportFromXLSX bulk-creates accounts from a workbook whose first sheet has
// name, email and an optional alias per row (header row ignored). Each email
// goes through the domain resolver; rows with an unrecognized domain are
// skipped and reported. Imported accounts are created verified with a random
// password, delivered by welcome email.
func (s *UserService) ImportFromXLSX(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", common.ErrValidation)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", common.ErrValidation)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", common.ErrValidation)
	}

	result := &ImportResult{Skipped: []string{}}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rowNum := i + 1
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" || strings.TrimSpace(row[1]) == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: name and email are required", rowNum))
			continue
		}
		name := strings.TrimSpace(row[0])
		addr := strings.ToLower(strings.TrimSpace(row[1]))
		var alias *string
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			a := strings.TrimSpace(row[2])
			alias = &a
		}

		validation, err := s.directory.ValidateEmail(ctx, addr)
		if err != nil {
			return nil, err
		}
		if !validation.IsValid {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %s: domain not recognized", rowNum, addr))
			continue
		}

		if _, err := s.userRepo.FindByEmail(ctx, addr); err == nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %s: already registered", rowNum, addr))
			continue
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to check existing account: %w", err)
		}

		password, err := security.GenerateOpaqueToken(s.importPasswordBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		hashed, err := security.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user := &model.User{
			ID:              uuid.NewString(),
			Name:            name,
			Alias:           alias,
			Email:           addr,
			HashedPassword:  hashed,
			Role:            validation.Role,
			IsEmailVerified: true, // admin vouched for the address
			InstitutionID:   &validation.Institution.ID,
		}
		if err := s.userRepo.Create(ctx, nil, user); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %s: %v", rowNum, addr, err))
			continue
		}
		result.Created++

		msg := email.Message{
			ToName:  user.Name,
			ToAddr:  user.Email,
			Subject: "Your Query Quest account",
			Body: fmt.Sprintf("Hi %s,\n\nAn account was created for you at %s.\nTemporary password: %s\nPlease change it after your first login.\n",
				user.Name, validation.Institution.Name, password),
		}
		if err := s.emailSvc.Send(msg); err != nil {
			s.logger.Errorw("welcome email delivery failed", "user_id", user.ID, "err", err)
		}
	}

	s.logger.Infow("bulk import finished", "created", result.Created, "skipped", len(result.Skipped))
	return result, nil
}
