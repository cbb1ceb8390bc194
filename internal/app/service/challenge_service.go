package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Each solve shaves a fraction of the base score off the challenge, never
// below score_min. Early solvers earn more.
const scoreDecayRatio = 0.02

type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	userRepo      repository.UserRepository
	txs           repository.TxBeginner
	logger        *zap.SugaredLogger
}

func NewChallengeService(
	challengeRepo repository.ChallengeRepository,
	userRepo repository.UserRepository,
	txs repository.TxBeginner,
	logger *zap.SugaredLogger,
) *ChallengeService {
	return &ChallengeService{
		challengeRepo: challengeRepo,
		userRepo:      userRepo,
		txs:           txs,
		logger:        logger,
	}
}

type CreateChallengeRequest struct {
	Title         string  `json:"title"`
	Statement     string  `json:"statement"`
	HelpText      *string `json:"help_text,omitempty"`
	Solution      string  `json:"solution"`
	Level         int     `json:"level"`
	ScoreBase     int     `json:"score_base"`
	ScoreMin      int     `json:"score_min"`
	InstitutionID *string `json:"institution_id,omitempty"` // nil = platform-wide, admin only
}

type UpdateChallengeRequest struct {
	Title     *string `json:"title,omitempty"`
	Statement *string `json:"statement,omitempty"`
	HelpText  *string `json:"help_text,omitempty"`
	Solution  *string `json:"solution,omitempty"`
	Level     *int    `json:"level,omitempty"`
}

func (s *ChallengeService) Create(ctx context.Context, callerID string, req CreateChallengeRequest) (*model.Challenge, error) {
	if req.Title == "" || req.Statement == "" || req.Solution == "" {
		return nil, fmt.Errorf("title, statement and solution are required: %w", common.ErrValidation)
	}
	if req.Level < 1 || req.Level > 5 {
		return nil, fmt.Errorf("level must be between 1 and 5: %w", common.ErrValidation)
	}
	if req.ScoreBase <= 0 {
		req.ScoreBase = 100 * req.Level
	}
	if req.ScoreMin <= 0 || req.ScoreMin > req.ScoreBase {
		req.ScoreMin = req.ScoreBase / 2
	}

	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	institutionID, err := resolveContentScope(caller, req.InstitutionID)
	if err != nil {
		return nil, err
	}

	challenge := &model.Challenge{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Slug:          slug.Make(req.Title),
		Statement:     req.Statement,
		HelpText:      req.HelpText,
		Solution:      req.Solution,
		Level:         req.Level,
		Score:         req.ScoreBase,
		ScoreBase:     req.ScoreBase,
		ScoreMin:      req.ScoreMin,
		InstitutionID: institutionID,
		CreatedByID:   &caller.ID,
	}
	if err := s.challengeRepo.Create(ctx, nil, challenge); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	return challenge, nil
}

func (s *ChallengeService) Update(ctx context.Context, callerID, id string, req UpdateChallengeRequest) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller: %w", err)
	}
	if err := checkContentAccess(caller, challenge.InstitutionID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		challenge.Title = *req.Title
		challenge.Slug = slug.Make(*req.Title)
	}
	if req.Statement != nil {
		challenge.Statement = *req.Statement
	}
	if req.HelpText != nil {
		challenge.HelpText = req.HelpText
	}
	if req.Solution != nil {
		challenge.Solution = *req.Solution
	}
	if req.Level != nil {
		if *req.Level < 1 || *req.Level > 5 {
			return nil, fmt.Errorf("level must be between 1 and 5: %w", common.ErrValidation)
		}
		challenge.Level = *req.Level
	}

	if err := s.challengeRepo.Update(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to update challenge: %w", err)
	}
	return challenge, nil
}

func (s *ChallengeService) Delete(ctx context.Context, callerID, id string) error {
	challenge, err := s.challengeRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	caller, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("failed to load caller: %w", err)
	}
	if err := checkContentAccess(caller, challenge.InstitutionID); err != nil {
		return err
	}
	return s.challengeRepo.Delete(ctx, id)
}

func (s *ChallengeService) List(ctx context.Context, page, pageSize, level int, institutionID, searchTerm, callerRole string) ([]model.Challenge, int, error) {
	challenges, total, err := s.challengeRepo.List(ctx, pageSize, (page-1)*pageSize, level, institutionID, searchTerm)
	if err != nil {
		return nil, 0, err
	}
	if callerRole == model.RoleStudent {
		for i := range challenges {
			challenges[i].Solution = ""
		}
	}
	return challenges, total, nil
}

func (s *ChallengeService) GetBySlug(ctx context.Context, slug, callerRole string) (*model.Challenge, error) {
	challenge, err := s.challengeRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if callerRole == model.RoleStudent {
		challenge.Solution = ""
	}
	return challenge, nil
}

type SubmitSolutionRequest struct {
	Query string `json:"query"`
}

type SubmitSolutionResult struct {
	Correct       bool `json:"correct"`
	AwardedPoints int  `json:"awarded_points"`
	AlreadySolved bool `json:"already_solved"`
}

// SubmitSolution grades a submitted query against the stored solution. The
// first correct solve awards the challenge's current score and decays it;
// repeat solves and wrong answers are recorded but award nothing.
func (s *ChallengeService) SubmitSolution(ctx context.Context, callerID, challengeSlug string, req SubmitSolutionRequest) (*SubmitSolutionResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", common.ErrValidation)
	}

	challenge, err := s.challengeRepo.FindBySlug(ctx, challengeSlug)
	if err != nil {
		return nil, err
	}

	correct := QueriesEquivalent(req.Query, challenge.Solution)
	alreadySolved, err := s.challengeRepo.HasCorrectAttempt(ctx, callerID, challenge.ID)
	if err != nil {
		return nil, err
	}

	awarded := 0
	if correct && !alreadySolved {
		awarded = challenge.Score
	}

	tx, err := s.txs.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	attempt := &model.ChallengeAttempt{
		ID:             uuid.NewString(),
		UserID:         callerID,
		ChallengeID:    challenge.ID,
		SubmittedQuery: req.Query,
		IsCorrect:      correct,
		AwardedPoints:  awarded,
	}
	if err := s.challengeRepo.RecordAttempt(ctx, tx, attempt); err != nil {
		return nil, err
	}

	action := "challenge_attempt_failed"
	if correct {
		action = "challenge_solved"
	}
	logEntry := &model.ActivityLog{
		ID:          uuid.NewString(),
		UserID:      &attempt.UserID,
		ChallengeID: &challenge.ID,
		Action:      action,
		Detail:      fmt.Sprintf("awarded %d points", awarded),
	}
	if err := s.challengeRepo.InsertLog(ctx, tx, logEntry); err != nil {
		return nil, err
	}

	if awarded > 0 {
		if err := s.userRepo.AddSolveRewards(ctx, tx, callerID, awarded); err != nil {
			return nil, err
		}
		newScore := DecayedScore(challenge.Score, challenge.ScoreBase, challenge.ScoreMin)
		if err := s.challengeRepo.ApplySolve(ctx, tx, challenge.ID, newScore); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if awarded > 0 {
		metrics.ChallengeSolves.Inc()
		s.logger.Infow("challenge solved", "user_id", callerID, "challenge_id", challenge.ID, "points", awarded)
	}
	return &SubmitSolutionResult{Correct: correct, AwardedPoints: awarded, AlreadySolved: alreadySolved}, nil
}

// QueriesEquivalent compares two SQL texts ignoring case, surrounding
// whitespace, internal whitespace runs and a trailing semicolon.
func QueriesEquivalent(submitted, solution string) bool {
	return normalizeQuery(submitted) == normalizeQuery(solution)
}

func normalizeQuery(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.TrimSuffix(q, ";")
	return strings.Join(strings.Fields(q), " ")
}

// DecayedScore computes the score after one more solve.
func DecayedScore(current, base, min int) int {
	decay := int(math.Round(float64(base) * scoreDecayRatio))
	if decay < 1 {
		decay = 1
	}
	next := current - decay
	if next < min {
		next = min
	}
	return next
}

// resolveContentScope decides which institution newly created content belongs
// to. Teachers are pinned to their own institution; admins may target any or
// none (platform-wide).
func resolveContentScope(caller *model.User, requested *string) (*string, error) {
	switch caller.Role {
	case model.RoleAdmin:
		return requested, nil
	case model.RoleTeacher:
		if caller.InstitutionID == nil {
			return nil, fmt.Errorf("teacher has no institution: %w", common.ErrForbidden)
		}
		if requested != nil && *requested != *caller.InstitutionID {
			return nil, fmt.Errorf("teachers may only create content for their own institution: %w", common.ErrForbidden)
		}
		return caller.InstitutionID, nil
	default:
		return nil, fmt.Errorf("students may not create content: %w", common.ErrForbidden)
	}
}

// checkContentAccess guards edits of existing content.
func checkContentAccess(caller *model.User, contentInstitutionID *string) error {
	if caller.Role == model.RoleAdmin {
		return nil
	}
	if caller.Role != model.RoleTeacher {
		return fmt.Errorf("insufficient role: %w", common.ErrForbidden)
	}
	if contentInstitutionID == nil {
		return fmt.Errorf("platform-wide content is admin managed: %w", common.ErrForbidden)
	}
	if caller.InstitutionID == nil || *caller.InstitutionID != *contentInstitutionID {
		return fmt.Errorf("content belongs to another institution: %w", common.ErrForbidden)
	}
	return nil
}
