package service

import (
	"context"
	"testing"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstitutionFixture() (*InstitutionService, *fakeInstitutionRepo, *fakeContactRepo) {
	instRepo := &fakeInstitutionRepo{}
	contactRepo := newFakeContactRepo()
	svc := NewInstitutionService(instRepo, contactRepo, &fakeTxBeginner{}, testLogger())
	return svc, instRepo, contactRepo
}

func TestCreateInstitutionValidation(t *testing.T) {
	ctx := context.Background()
	svc, instRepo, _ := newInstitutionFixture()

	_, err := svc.Create(ctx, CreateInstitutionRequest{
		Name:               "Springfield High",
		StudentEmailSuffix: "student.springfield.edu", // missing leading @
		TeacherEmailSuffix: "@springfield.edu",
	})
	assert.ErrorIs(t, err, common.ErrValidation)

	inst, err := svc.Create(ctx, CreateInstitutionRequest{
		Name:               "Springfield High",
		StudentEmailSuffix: "@student.springfield.edu",
		TeacherEmailSuffix: "@springfield.edu",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.Len(t, instRepo.insts, 1)
}

func TestCreateContactRequest(t *testing.T) {
	ctx := context.Background()

	valid := CreateContactRequestRequest{
		InstitutionName:    "Shelbyville Academy",
		ContactName:        "Principal Valiant",
		ContactEmail:       "valiant@shelbyville.edu",
		StudentEmailSuffix: "@shelbyville.edu",
		TeacherEmailSuffix: "@staff.shelbyville.edu",
		StudentCount:       300,
		TeacherCount:       20,
	}

	t.Run("success", func(t *testing.T) {
		svc, _, contactRepo := newInstitutionFixture()

		cr, err := svc.CreateContactRequest(ctx, valid)
		require.NoError(t, err)
		assert.Equal(t, model.ContactRequestPending, cr.Status)
		assert.Len(t, contactRepo.reqs, 1)
	})

	t.Run("bad email", func(t *testing.T) {
		svc, _, _ := newInstitutionFixture()

		req := valid
		req.ContactEmail = "not-an-email"
		_, err := svc.CreateContactRequest(ctx, req)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("suffix without @", func(t *testing.T) {
		svc, _, _ := newInstitutionFixture()

		req := valid
		req.StudentEmailSuffix = "shelbyville.edu"
		_, err := svc.CreateContactRequest(ctx, req)
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestSetContactRequestStatus(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, contactRepo *fakeContactRepo) *model.ContactRequest {
		cr := &model.ContactRequest{
			ID:                 "req-1",
			InstitutionName:    "Shelbyville Academy",
			ContactName:        "Principal Valiant",
			ContactEmail:       "valiant@shelbyville.edu",
			StudentEmailSuffix: "@shelbyville.edu",
			TeacherEmailSuffix: "@staff.shelbyville.edu",
			Status:             model.ContactRequestPending,
		}
		require.NoError(t, contactRepo.Create(ctx, cr))
		return cr
	}

	t.Run("reject", func(t *testing.T) {
		svc, instRepo, contactRepo := newInstitutionFixture()
		seed(t, contactRepo)

		cr, err := svc.SetContactRequestStatus(ctx, "req-1", model.ContactRequestRejected)
		require.NoError(t, err)
		assert.Equal(t, model.ContactRequestRejected, cr.Status)
		assert.Empty(t, instRepo.insts, "rejection must not provision an institution")
	})

	t.Run("invalid status", func(t *testing.T) {
		svc, _, contactRepo := newInstitutionFixture()
		seed(t, contactRepo)

		_, err := svc.SetContactRequestStatus(ctx, "req-1", "maybe")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown request", func(t *testing.T) {
		svc, _, _ := newInstitutionFixture()

		_, err := svc.SetContactRequestStatus(ctx, "ghost", model.ContactRequestRejected)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("approval provisions from the request", func(t *testing.T) {
		svc, instRepo, contactRepo := newInstitutionFixture()
		seed(t, contactRepo)

		cr, err := svc.SetContactRequestStatus(ctx, "req-1", model.ContactRequestApproved)
		require.NoError(t, err)
		assert.Equal(t, model.ContactRequestApproved, cr.Status)

		require.Len(t, instRepo.insts, 1)
		inst := instRepo.insts[0]
		assert.Equal(t, "Shelbyville Academy", inst.Name)
		assert.Equal(t, "@shelbyville.edu", inst.StudentEmailSuffix)
		assert.Equal(t, "@staff.shelbyville.edu", inst.TeacherEmailSuffix)
		require.NotNil(t, inst.ContactRequestID)
		assert.Equal(t, "req-1", *inst.ContactRequestID)
	})

	t.Run("repeat approval reuses the institution", func(t *testing.T) {
		svc, instRepo, contactRepo := newInstitutionFixture()
		seed(t, contactRepo)

		_, err := svc.SetContactRequestStatus(ctx, "req-1", model.ContactRequestApproved)
		require.NoError(t, err)
		cr, err := svc.SetContactRequestStatus(ctx, "req-1", model.ContactRequestApproved)
		require.NoError(t, err)

		assert.Equal(t, model.ContactRequestApproved, cr.Status)
		assert.Len(t, instRepo.insts, 1, "a second approval must not create a duplicate")
	})
}

func TestDeleteInstitution(t *testing.T) {
	ctx := context.Background()
	svc, instRepo, _ := newInstitutionFixture()

	instRepo.insts = append(instRepo.insts, model.Institution{ID: "inst-1", Name: "Springfield High"})
	instRepo.userCount = 12
	instRepo.challengeCount = 4

	res, err := svc.Delete(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 12, res.DeletedUsers)
	assert.Equal(t, 4, res.DeletedChallenges)
	assert.Empty(t, instRepo.insts)

	_, err = svc.Delete(ctx, "inst-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListContactRequestsStatusFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, contactRepo := newInstitutionFixture()

	require.NoError(t, contactRepo.Create(ctx, &model.ContactRequest{ID: "a", Status: model.ContactRequestPending}))
	require.NoError(t, contactRepo.Create(ctx, &model.ContactRequest{ID: "b", Status: model.ContactRequestRejected}))

	pending, total, err := svc.ListContactRequests(ctx, 1, 20, model.ContactRequestPending)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ID)

	_, _, err = svc.ListContactRequests(ctx, 1, 20, "bogus")
	assert.ErrorIs(t, err, common.ErrValidation)
}
