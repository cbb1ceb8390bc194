package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/ai"
	"query_quest/internal/platform/email"

	"go.uber.org/zap"
)

// In-memory repository fakes. Transactions are satisfied by fakeTxBeginner,
// whose handles do nothing; the fakes apply writes directly.

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type fakeTx struct{}

func (fakeTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeTxBeginner struct {
	begun int
}

func (b *fakeTxBeginner) Begin(context.Context) (repository.Tx, error) {
	b.begun++
	return fakeTx{}, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (r *fakeUserRepo) add(u *model.User) *model.User {
	cp := *u
	r.users[cp.ID] = &cp
	return &cp
}

func (r *fakeUserRepo) Create(_ context.Context, _ repository.Tx, user *model.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return common.ErrConflict
		}
	}
	cp := *user
	r.users[cp.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, addr string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == addr {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) FindByVerificationToken(_ context.Context, token string) (*model.User, error) {
	for _, u := range r.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context, limit, offset int, institutionID, role, searchTerm string) ([]model.User, int, error) {
	var out []model.User
	for _, u := range r.users {
		if institutionID != "" && (u.InstitutionID == nil || *u.InstitutionID != institutionID) {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		if searchTerm != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(searchTerm)) {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *user
	r.users[cp.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id string) error {
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.IsEmailVerified = true
	u.VerificationToken = nil
	return nil
}

func (r *fakeUserRepo) AddSolveRewards(_ context.Context, _ repository.Tx, id string, points int) error {
	u, ok := r.users[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Points += points
	u.SolvedChallenges++
	return nil
}

func (r *fakeUserRepo) DeleteCascade(_ context.Context, _ repository.Tx, id string) error {
	delete(r.users, id)
	return nil
}

type fakeInstitutionRepo struct {
	insts []model.Institution

	userCount      int
	challengeCount int
	lessonCount    int
}

func (r *fakeInstitutionRepo) Create(_ context.Context, _ repository.Tx, inst *model.Institution) error {
	r.insts = append(r.insts, *inst)
	return nil
}

func (r *fakeInstitutionRepo) Update(_ context.Context, inst *model.Institution) error {
	for i := range r.insts {
		if r.insts[i].ID == inst.ID {
			r.insts[i] = *inst
			return nil
		}
	}
	return common.ErrNotFound
}

func (r *fakeInstitutionRepo) FindByID(_ context.Context, id string) (*model.Institution, error) {
	for i := range r.insts {
		if r.insts[i].ID == id {
			cp := r.insts[i]
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeInstitutionRepo) FindByContactRequestID(_ context.Context, requestID string) (*model.Institution, error) {
	for i := range r.insts {
		if r.insts[i].ContactRequestID != nil && *r.insts[i].ContactRequestID == requestID {
			cp := r.insts[i]
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeInstitutionRepo) ListAll(_ context.Context) ([]model.Institution, error) {
	out := make([]model.Institution, len(r.insts))
	copy(out, r.insts)
	return out, nil
}

func (r *fakeInstitutionRepo) CountDependents(_ context.Context, _ string) (int, int, error) {
	return r.userCount, r.challengeCount, nil
}

func (r *fakeInstitutionRepo) Aggregates(_ context.Context, _ string) (int, int, int, error) {
	return r.userCount, r.challengeCount, r.lessonCount, nil
}

func (r *fakeInstitutionRepo) DeleteCascade(_ context.Context, _ repository.Tx, id string) error {
	for i := range r.insts {
		if r.insts[i].ID == id {
			r.insts = append(r.insts[:i], r.insts[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

type fakeChallengeRepo struct {
	challenges map[string]*model.Challenge
	attempts   []model.ChallengeAttempt
	logs       []model.ActivityLog
	top        []model.Challenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: map[string]*model.Challenge{}}
}

func (r *fakeChallengeRepo) Create(_ context.Context, _ repository.Tx, c *model.Challenge) error {
	for _, existing := range r.challenges {
		if existing.Slug == c.Slug {
			return common.ErrConflict
		}
	}
	cp := *c
	r.challenges[cp.ID] = &cp
	return nil
}

func (r *fakeChallengeRepo) Update(_ context.Context, c *model.Challenge) error {
	if _, ok := r.challenges[c.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *c
	r.challenges[cp.ID] = &cp
	return nil
}

func (r *fakeChallengeRepo) FindByID(_ context.Context, id string) (*model.Challenge, error) {
	c, ok := r.challenges[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeChallengeRepo) FindBySlug(_ context.Context, slug string) (*model.Challenge, error) {
	for _, c := range r.challenges {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeChallengeRepo) List(_ context.Context, _, _, level int, institutionID, searchTerm string) ([]model.Challenge, int, error) {
	var out []model.Challenge
	for _, c := range r.challenges {
		if level > 0 && c.Level != level {
			continue
		}
		if institutionID != "" && c.InstitutionID != nil && *c.InstitutionID != institutionID {
			continue
		}
		if searchTerm != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(searchTerm)) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *fakeChallengeRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.challenges[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.challenges, id)
	return nil
}

func (r *fakeChallengeRepo) TopBySolves(_ context.Context, _ string, limit int) ([]model.Challenge, error) {
	if len(r.top) > limit {
		return r.top[:limit], nil
	}
	return r.top, nil
}

func (r *fakeChallengeRepo) RecordAttempt(_ context.Context, _ repository.Tx, attempt *model.ChallengeAttempt) error {
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *fakeChallengeRepo) HasCorrectAttempt(_ context.Context, userID, challengeID string) (bool, error) {
	for _, a := range r.attempts {
		if a.UserID == userID && a.ChallengeID == challengeID && a.IsCorrect {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeChallengeRepo) ApplySolve(_ context.Context, _ repository.Tx, challengeID string, newScore int) error {
	c, ok := r.challenges[challengeID]
	if !ok {
		return common.ErrNotFound
	}
	c.Solves++
	c.Score = newScore
	return nil
}

func (r *fakeChallengeRepo) InsertLog(_ context.Context, _ repository.Tx, entry *model.ActivityLog) error {
	r.logs = append(r.logs, *entry)
	return nil
}

type fakeLessonRepo struct {
	lessons map[string]*model.Lesson
	recent  []model.Lesson
}

func newFakeLessonRepo() *fakeLessonRepo {
	return &fakeLessonRepo{lessons: map[string]*model.Lesson{}}
}

func (r *fakeLessonRepo) Create(_ context.Context, l *model.Lesson) error {
	cp := *l
	r.lessons[cp.ID] = &cp
	return nil
}

func (r *fakeLessonRepo) Update(_ context.Context, l *model.Lesson) error {
	if _, ok := r.lessons[l.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *l
	r.lessons[cp.ID] = &cp
	return nil
}

func (r *fakeLessonRepo) FindByID(_ context.Context, id string) (*model.Lesson, error) {
	l, ok := r.lessons[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLessonRepo) List(_ context.Context, _, _ int, institutionID string, publishedOnly bool) ([]model.Lesson, int, error) {
	var out []model.Lesson
	for _, l := range r.lessons {
		if institutionID != "" && l.InstitutionID != institutionID {
			continue
		}
		if publishedOnly && !l.IsPublished {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (r *fakeLessonRepo) SetPublished(_ context.Context, id string, published bool) error {
	l, ok := r.lessons[id]
	if !ok {
		return common.ErrNotFound
	}
	l.IsPublished = published
	return nil
}

func (r *fakeLessonRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.lessons[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.lessons, id)
	return nil
}

func (r *fakeLessonRepo) RecentPublished(_ context.Context, _ string, limit int) ([]model.Lesson, error) {
	if len(r.recent) > limit {
		return r.recent[:limit], nil
	}
	return r.recent, nil
}

type fakeContactRepo struct {
	reqs map[string]*model.ContactRequest
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{reqs: map[string]*model.ContactRequest{}}
}

func (r *fakeContactRepo) Create(_ context.Context, req *model.ContactRequest) error {
	cp := *req
	r.reqs[cp.ID] = &cp
	return nil
}

func (r *fakeContactRepo) FindByID(_ context.Context, id string) (*model.ContactRequest, error) {
	req, ok := r.reqs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *fakeContactRepo) List(_ context.Context, _, _ int, status model.ContactRequestStatus) ([]model.ContactRequest, int, error) {
	var out []model.ContactRequest
	for _, req := range r.reqs {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (r *fakeContactRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.ContactRequestStatus) error {
	req, ok := r.reqs[id]
	if !ok {
		return common.ErrNotFound
	}
	req.Status = status
	return nil
}

type fakeEmailService struct {
	sent    []email.Message
	failErr error
}

func (s *fakeEmailService) Send(msg email.Message) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeCompleter struct {
	reply string
	err   error
	got   []ai.Message
}

func (c *fakeCompleter) Complete(_ context.Context, messages []ai.Message) (string, error) {
	c.got = messages
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}
