package service

import (
	"context"
	"fmt"
	"testing"

	"query_quest/internal/domain/model"
	"query_quest/internal/platform/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatFixture(completer ai.Completer) (*ChatService, *fakeUserRepo, *fakeInstitutionRepo, *fakeChallengeRepo, *fakeLessonRepo) {
	userRepo := newFakeUserRepo()
	instRepo := &fakeInstitutionRepo{}
	challengeRepo := newFakeChallengeRepo()
	lessonRepo := newFakeLessonRepo()
	svc := NewChatService(userRepo, instRepo, challengeRepo, lessonRepo, completer, nil, testLogger(), 10)
	return svc, userRepo, instRepo, challengeRepo, lessonRepo
}

func TestChatRespond(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards reply", func(t *testing.T) {
		completer := &fakeCompleter{reply: "Try a WHERE clause."}
		svc, userRepo, _, _, _ := newChatFixture(completer)
		seedUser(userRepo, "student-1", model.RoleStudent, nil)

		reply, err := svc.Respond(ctx, "student-1", "How do I filter rows?", nil)
		require.NoError(t, err)
		assert.Equal(t, "Try a WHERE clause.", reply)

		require.NotEmpty(t, completer.got)
		assert.Equal(t, ai.RoleSystem, completer.got[0].Role)
		assert.Contains(t, completer.got[0].Content, "student-1", "system prompt carries the user context")
		last := completer.got[len(completer.got)-1]
		assert.Equal(t, ai.RoleUser, last.Role)
		assert.Equal(t, "How do I filter rows?", last.Content)
	})

	t.Run("backend failure yields fallback, not error", func(t *testing.T) {
		completer := &fakeCompleter{err: assert.AnError}
		svc, userRepo, _, _, _ := newChatFixture(completer)
		seedUser(userRepo, "student-1", model.RoleStudent, nil)

		reply, err := svc.Respond(ctx, "student-1", "hello", nil)
		require.NoError(t, err)
		assert.Equal(t, chatFallbackReply, reply)
	})

	t.Run("institution context in prompt", func(t *testing.T) {
		completer := &fakeCompleter{reply: "ok"}
		svc, userRepo, instRepo, challengeRepo, lessonRepo := newChatFixture(completer)

		instID := "inst-1"
		instRepo.insts = []model.Institution{{ID: instID, Name: "Springfield High"}}
		instRepo.userCount = 12
		seedUser(userRepo, "student-1", model.RoleStudent, &instID)
		challengeRepo.top = []model.Challenge{{Title: "Joins", Level: 3, Solves: 7}}
		lessonRepo.recent = []model.Lesson{{Title: "Aggregates", Description: "GROUP BY basics"}}

		_, err := svc.Respond(ctx, "student-1", "what should I study?", nil)
		require.NoError(t, err)

		system := completer.got[0].Content
		assert.Contains(t, system, "Springfield High")
		assert.Contains(t, system, "Joins (level 3, 7 solves)")
		assert.Contains(t, system, "Aggregates - GROUP BY basics")
	})

	t.Run("snapshot failure degrades to user-only prompt", func(t *testing.T) {
		completer := &fakeCompleter{reply: "ok"}
		svc, userRepo, _, _, _ := newChatFixture(completer)

		missing := "inst-gone"
		seedUser(userRepo, "student-1", model.RoleStudent, &missing)

		reply, err := svc.Respond(ctx, "student-1", "hello", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", reply)
		assert.NotContains(t, completer.got[0].Content, "institution_stats")
	})
}

func TestChatBuildMessages(t *testing.T) {
	svc, _, _, _, _ := newChatFixture(&fakeCompleter{})

	var history []ai.Message
	for i := 0; i < 15; i++ {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	history = append(history, ai.Message{Role: ai.RoleSystem, Content: "injected instructions"})

	messages := svc.buildMessages(contextSnapshot{UserName: "Lisa", Role: model.RoleStudent}, history, "latest question")

	// system prompt + truncated history (minus the filtered system turn) + new message
	assert.Len(t, messages, 1+9+1)
	assert.Equal(t, ai.RoleSystem, messages[0].Role)
	for _, m := range messages[1 : len(messages)-1] {
		assert.Equal(t, ai.RoleUser, m.Role, "client-supplied system turns are dropped")
	}
	assert.Equal(t, "turn 6", messages[1].Content, "history keeps only the most recent turns")
	assert.Equal(t, "latest question", messages[len(messages)-1].Content)
}
