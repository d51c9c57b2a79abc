package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/noah-isme/student-clearance-api/internal/models"
	"github.com/noah-isme/student-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

type fakeAccountRepo struct {
	accounts          map[int64]*models.AccountWithProfile
	nextID            int64
	refreshTokens     map[string]*models.RefreshToken
	findErr           error
	createErr         error
	updatePasswordErr error
	revokeUserErr     error
	programErr        error
	revokeTokenErr    error
	revokedUsers      []int64
	passwordUpdates   int
	programUpdates    map[int64]string
	lastLoginUpdated  bool
}

func newFakeAccountRepo(accounts ...*models.AccountWithProfile) *fakeAccountRepo {
	repo := &fakeAccountRepo{
		accounts:       make(map[int64]*models.AccountWithProfile),
		refreshTokens:  make(map[string]*models.RefreshToken),
		programUpdates: make(map[int64]string),
		nextID:         100,
	}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (f *fakeAccountRepo) FindByUsername(ctx context.Context, username string) (*models.AccountWithProfile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, id int64) (*models.AccountWithProfile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) FindByUsernameAndEmail(ctx context.Context, username, email string) (*models.AccountWithProfile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if a.Username == username && a.Email == email {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := f.FindByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeAccountRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if f.findErr != nil {
		return false, f.findErr
	}
	for _, a := range f.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepo) CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, a := range f.accounts {
		if a.Username == account.Username {
			return repository.ErrDuplicateUsername
		}
		if a.Email == account.Email {
			return repository.ErrDuplicateEmail
		}
	}
	f.nextID++
	account.ID = f.nextID
	profile.ID = f.nextID
	profile.UserID = account.ID
	f.accounts[account.ID] = &models.AccountWithProfile{Account: *account, Profile: profile}
	return nil
}

func (f *fakeAccountRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if f.updatePasswordErr != nil {
		return f.updatePasswordErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.PasswordHash = passwordHash
	f.passwordUpdates++
	return nil
}

func (f *fakeAccountRepo) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	f.lastLoginUpdated = true
	return nil
}

func (f *fakeAccountRepo) UpdateProgram(ctx context.Context, userID int64, program string) error {
	if f.programErr != nil {
		return f.programErr
	}
	f.programUpdates[userID] = program
	return nil
}

func (f *fakeAccountRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	f.refreshTokens[token.Token] = token
	return nil
}

func (f *fakeAccountRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := f.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (f *fakeAccountRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if f.revokeTokenErr != nil {
		return f.revokeTokenErr
	}
	for _, token := range f.refreshTokens {
		if token.ID == id && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeAccountRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	if f.revokeUserErr != nil {
		return f.revokeUserErr
	}
	f.revokedUsers = append(f.revokedUsers, userID)
	return nil
}

type fakeAudit struct {
	logs []*models.AuditLog
	err  error
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

// fakeRequestRepo keeps requests in memory and joins owners from an account repo.
type fakeRequestRepo struct {
	requests  map[int64]models.ClearanceRequest
	owners    *fakeAccountRepo
	nextID    int64
	clock     time.Time
	createErr error
	listErr   error
	filters   []models.ClearanceRequestFilter
}

func newFakeRequestRepo(owners *fakeAccountRepo) *fakeRequestRepo {
	return &fakeRequestRepo{
		requests: make(map[int64]models.ClearanceRequest),
		owners:   owners,
		clock:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRequestRepo) seed(req models.ClearanceRequest) models.ClearanceRequest {
	f.nextID++
	req.ID = f.nextID
	f.clock = f.clock.Add(time.Minute)
	req.CreatedAt = f.clock
	req.UpdatedAt = f.clock
	f.requests[req.ID] = req
	return req
}

func (f *fakeRequestRepo) record(req models.ClearanceRequest) models.ClearanceRequestRecord {
	rec := models.ClearanceRequestRecord{ClearanceRequest: req}
	if owner, ok := f.owners.accounts[req.UserID]; ok {
		rec.Username = owner.Username
		rec.Email = owner.Email
		rec.Profile = owner.Profile
	}
	return rec
}

func (f *fakeRequestRepo) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.filters = append(f.filters, filter)
	var out []models.ClearanceRequestRecord
	for _, req := range f.requests {
		if filter.Scope != models.ScopeAll && req.UserID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && req.RequestStatus != filter.Status {
			continue
		}
		out = append(out, f.record(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id int64) (*models.ClearanceRequestRecord, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	rec := f.record(req)
	return &rec, nil
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *models.ClearanceRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	*req = f.seed(*req)
	return nil
}

func (f *fakeRequestRepo) Update(ctx context.Context, req *models.ClearanceRequest) error {
	if _, ok := f.requests[req.ID]; !ok {
		return sql.ErrNoRows
	}
	f.clock = f.clock.Add(time.Minute)
	req.UpdatedAt = f.clock
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeRequestRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.requests, id)
	return nil
}

func (f *fakeRequestRepo) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	counts := map[string]int{}
	for _, req := range f.requests {
		counts[req.RequestStatus]++
	}
	out := make([]models.StatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, models.StatusCount{Status: status, Count: n})
	}
	return out, nil
}

type fakeStore struct {
	files   map[string][]byte
	deleted []string
	saveErr error
	n       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) SaveStream(dir, originalName string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.n++
	rel := fmt.Sprintf("%s/file-%d-%s", dir, f.n, originalName)
	f.files[rel] = content
	return rel, nil
}

func (f *fakeStore) Delete(rel string) error {
	f.deleted = append(f.deleted, rel)
	delete(f.files, rel)
	return nil
}

type fakeCacheRepo struct {
	values  map[string][]byte
	deleted []string
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: make(map[string][]byte)}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	return nil
}

func (f *fakeCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}
