package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/ai"
	"query_quest/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const chatFallbackReply = "Sorry, the study assistant is unavailable right now. Please try again in a moment."

const chatInstructions = `You are the Query Quest study assistant. You help students and teachers
learn SQL: explain concepts, hint at challenge approaches without giving away
full solutions, and point to relevant lessons. Be concise and encouraging.
Use the context block below to personalize your answers.`

const snapshotCacheTTL = 60 * time.Second

type ChatService struct {
	userRepo        repository.UserRepository
	institutionRepo repository.InstitutionRepository
	challengeRepo   repository.ChallengeRepository
	lessonRepo      repository.LessonRepository
	completer       ai.Completer
	rdb             *redis.Client
	logger          *zap.SugaredLogger

	historyLimit int
}

func NewChatService(
	userRepo repository.UserRepository,
	institutionRepo repository.InstitutionRepository,
	challengeRepo repository.ChallengeRepository,
	lessonRepo repository.LessonRepository,
	completer ai.Completer,
	rdb *redis.Client,
	logger *zap.SugaredLogger,
	historyLimit int,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &ChatService{
		userRepo:        userRepo,
		institutionRepo: institutionRepo,
		challengeRepo:   challengeRepo,
		lessonRepo:      lessonRepo,
		completer:       completer,
		rdb:             rdb,
		logger:          logger,
		historyLimit:    historyLimit,
	}
}

// contextSnapshot is the personalization block serialized into the system
// prompt. The institution part is cached per institution.
type contextSnapshot struct {
	UserName         string   `json:"user_name"`
	UserAlias        string   `json:"user_alias,omitempty"`
	Role             string   `json:"role"`
	Points           int      `json:"points"`
	SolvedChallenges int      `json:"solved_challenges"`
	Institution      string   `json:"institution,omitempty"`
	InstitutionStats *struct {
		Users      int `json:"users"`
		Challenges int `json:"challenges"`
		Lessons    int `json:"lessons"`
	} `json:"institution_stats,omitempty"`
	PopularChallenges []string `json:"popular_challenges,omitempty"`
	RecentLessons     []string `json:"recent_lessons,omitempty"`
}

type institutionSnapshot struct {
	Name              string   `json:"name"`
	Users             int      `json:"users"`
	Challenges        int      `json:"challenges"`
	Lessons           int      `json:"lessons"`
	PopularChallenges []string `json:"popular_challenges"`
	RecentLessons     []string `json:"recent_lessons"`
}

// Respond forwards the conversation to the completion backend with a
// personalized system prompt. Any backend failure yields the static fallback
// string, never an error.
func (s *ChatService) Respond(ctx context.Context, callerID, message string, history []ai.Message) (string, error) {
	user, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		return "", err
	}

	snap := contextSnapshot{
		UserName:         user.Name,
		Role:             user.Role,
		Points:           user.Points,
		SolvedChallenges: user.SolvedChallenges,
	}
	if user.Alias != nil {
		snap.UserAlias = *user.Alias
	}

	if user.InstitutionID != nil {
		inst, err := s.institutionSnapshot(ctx, *user.InstitutionID)
		if err != nil {
			// Degrade to a user-only prompt rather than failing the chat.
			s.logger.Warnw("institution snapshot unavailable", "institution_id", *user.InstitutionID, "err", err)
		} else {
			snap.Institution = inst.Name
			snap.InstitutionStats = &struct {
				Users      int `json:"users"`
				Challenges int `json:"challenges"`
				Lessons    int `json:"lessons"`
			}{Users: inst.Users, Challenges: inst.Challenges, Lessons: inst.Lessons}
			snap.PopularChallenges = inst.PopularChallenges
			snap.RecentLessons = inst.RecentLessons
		}
	}

	messages := s.buildMessages(snap, history, message)
	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		metrics.ChatFallbacks.Inc()
		s.logger.Errorw("completion backend failed", "user_id", callerID, "err", err)
		return chatFallbackReply, nil
	}
	return reply, nil
}

func (s *ChatService) buildMessages(snap contextSnapshot, history []ai.Message, message string) []ai.Message {
	ctxJSON, _ := json.Marshal(snap)
	system := chatInstructions + "\n\nContext:\n" + string(ctxJSON)

	if len(history) > s.historyLimit {
		history = history[len(history)-s.historyLimit:]
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: system})
	for _, turn := range history {
		if turn.Role != ai.RoleUser && turn.Role != ai.RoleAssistant {
			continue
		}
		messages = append(messages, turn)
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: message})
	return messages
}

func (s *ChatService) institutionSnapshot(ctx context.Context, institutionID string) (*institutionSnapshot, error) {
	cacheKey := "chat:snapshot:" + institutionID
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var snap institutionSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
		}
	}

	inst, err := s.institutionRepo.FindByID(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	users, challenges, lessons, err := s.institutionRepo.Aggregates(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	snap := &institutionSnapshot{
		Name:              inst.Name,
		Users:             users,
		Challenges:        challenges,
		Lessons:           lessons,
		PopularChallenges: []string{},
		RecentLessons:     []string{},
	}

	top, err := s.challengeRepo.TopBySolves(ctx, institutionID, 3)
	if err != nil {
		return nil, err
	}
	for _, c := range top {
		snap.PopularChallenges = append(snap.PopularChallenges,
			fmt.Sprintf("%s (level %d, %d solves)", c.Title, c.Level, c.Solves))
	}

	recent, err := s.lessonRepo.RecentPublished(ctx, institutionID, 3)
	if err != nil {
		return nil, err
	}
	for _, l := range recent {
		title := l.Title
		if desc := strings.TrimSpace(l.Description); desc != "" {
			title += " - " + desc
		}
		snap.RecentLessons = append(snap.RecentLessons, title)
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, raw, snapshotCacheTTL).Err(); err != nil {
				s.logger.Warnw("snapshot cache write failed", "err", err)
			}
		}
	}
	return snap, nil
}
