package service

import (
	"context"
	"testing"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLessonFixture() (*LessonService, *fakeLessonRepo, *fakeUserRepo) {
	lessonRepo := newFakeLessonRepo()
	userRepo := newFakeUserRepo()
	svc := NewLessonService(lessonRepo, userRepo)
	return svc, lessonRepo, userRepo
}

func TestCreateLesson(t *testing.T) {
	ctx := context.Background()
	instID := "inst-1"

	t.Run("teacher scoped to own institution", func(t *testing.T) {
		svc, _, userRepo := newLessonFixture()
		seedUser(userRepo, "teacher-1", model.RoleTeacher, &instID)

		lesson, err := svc.Create(ctx, "teacher-1", CreateLessonRequest{Title: "Intro to SELECT"})
		require.NoError(t, err)
		assert.Equal(t, instID, lesson.InstitutionID)
		assert.False(t, lesson.IsPublished, "new lessons start unpublished")
	})

	t.Run("admin must name an institution", func(t *testing.T) {
		svc, _, userRepo := newLessonFixture()
		seedUser(userRepo, "admin-1", model.RoleAdmin, nil)

		_, err := svc.Create(ctx, "admin-1", CreateLessonRequest{Title: "Orphan"})
		assert.ErrorIs(t, err, common.ErrValidation)

		lesson, err := svc.Create(ctx, "admin-1", CreateLessonRequest{Title: "Intro", InstitutionID: &instID})
		require.NoError(t, err)
		assert.Equal(t, instID, lesson.InstitutionID)
	})

	t.Run("student forbidden", func(t *testing.T) {
		svc, _, userRepo := newLessonFixture()
		seedUser(userRepo, "student-1", model.RoleStudent, &instID)

		_, err := svc.Create(ctx, "student-1", CreateLessonRequest{Title: "Nope"})
		assert.ErrorIs(t, err, common.ErrForbidden)
	})
}

func TestLessonPublishing(t *testing.T) {
	ctx := context.Background()
	instID := "inst-1"

	svc, lessonRepo, userRepo := newLessonFixture()
	seedUser(userRepo, "teacher-1", model.RoleTeacher, &instID)
	require.NoError(t, lessonRepo.Create(ctx, &model.Lesson{
		ID: "les-1", Title: "Draft", InstitutionID: instID, IsPublished: false,
	}))

	// unpublished lessons are invisible to students
	_, err := svc.Get(ctx, "les-1", model.RoleStudent)
	assert.ErrorIs(t, err, common.ErrNotFound)

	lesson, err := svc.Get(ctx, "les-1", model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Draft", lesson.Title)

	published, err := svc.SetPublished(ctx, "teacher-1", "les-1", true)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)

	_, err = svc.Get(ctx, "les-1", model.RoleStudent)
	assert.NoError(t, err)

	// students only list published lessons
	require.NoError(t, lessonRepo.Create(ctx, &model.Lesson{
		ID: "les-2", Title: "Another Draft", InstitutionID: instID,
	}))
	visible, total, err := svc.List(ctx, 1, 20, instID, model.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, visible, 1)
	assert.Equal(t, "les-1", visible[0].ID)

	all, total, err := svc.List(ctx, 1, 20, instID, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)
}

func TestLessonAccessControl(t *testing.T) {
	ctx := context.Background()
	instID := "inst-1"
	otherID := "inst-2"
	newTitle := "Edited"

	svc, lessonRepo, userRepo := newLessonFixture()
	seedUser(userRepo, "teacher-1", model.RoleTeacher, &instID)
	seedUser(userRepo, "teacher-2", model.RoleTeacher, &otherID)
	require.NoError(t, lessonRepo.Create(ctx, &model.Lesson{
		ID: "les-1", Title: "Original", InstitutionID: instID,
	}))

	_, err := svc.Update(ctx, "teacher-2", "les-1", UpdateLessonRequest{Title: &newTitle})
	assert.ErrorIs(t, err, common.ErrForbidden)

	err = svc.Delete(ctx, "teacher-2", "les-1")
	assert.ErrorIs(t, err, common.ErrForbidden)

	updated, err := svc.Update(ctx, "teacher-1", "les-1", UpdateLessonRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)

	require.NoError(t, svc.Delete(ctx, "teacher-1", "les-1"))
	_, err = lessonRepo.FindByID(ctx, "les-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
