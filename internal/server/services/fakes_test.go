package services

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/psm/internal/server/repositories/groups"
	"github.com/dmitrijs2005/psm/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/psm/internal/server/repositories/roles"
	"github.com/dmitrijs2005/psm/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func ptr[T any](v T) *T { return &v }

var (
	alice = &auth.Principal{UserID: 1, Name: "alice", Authorities: []string{models.RoleUser}}
	bob   = &auth.Principal{UserID: 2, Name: "bob", Authorities: []string{models.RoleUser}}
	root  = &auth.Principal{UserID: 3, Name: "root", Authorities: []string{models.RoleAdmin, models.RoleUser}}
)

// --- logger ---

type logRecord struct {
	level string
	msg   string
	args  []any
}

type recLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *recLogger) Debug(_ context.Context, msg string, args ...any) { l.add("debug", msg, args) }
func (l *recLogger) Info(_ context.Context, msg string, args ...any)  { l.add("info", msg, args) }
func (l *recLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recLogger) Error(_ context.Context, msg string, args ...any) { l.add("error", msg, args) }
func (l *recLogger) With(...any) logging.Logger                       { return l }

// find returns the first record with the given level and message.
func (l *recLogger) find(level, msg string) (logRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			return r, true
		}
	}
	return logRecord{}, false
}

func (r logRecord) value(key string) any {
	for i := 0; i+1 < len(r.args); i += 2 {
		if r.args[i] == key {
			return r.args[i+1]
		}
	}
	return nil
}

func (r logRecord) String() string { return fmt.Sprint(r.msg, r.args) }

// --- encryptor ---

type fakeEncryptor struct{ err error }

func (f fakeEncryptor) Encrypt(plain string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "enc:" + plain, nil
}

func (f fakeEncryptor) Decrypt(c string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if !strings.HasPrefix(c, "enc:") {
		return "", fmt.Errorf("bad ciphertext")
	}
	return strings.TrimPrefix(c, "enc:"), nil
}

// --- repositories ---

type fakeUsers struct {
	users     map[int64]*models.User
	nextID    int64
	createErr error
	updateErr error
	deleteErr error

	setRolesErr  error
	roleSets     map[int64][]int64
	withPassword bool
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	cp := *u
	f.users[u.ID] = &cp
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, u *models.User, withPassword bool) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.users[u.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Name = u.Name
	if withPassword {
		cur.Password = u.Password
	}
	f.withPassword = withPassword
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) SetRoles(_ context.Context, userID int64, roleIDs []int64) error {
	if f.setRolesErr != nil {
		return f.setRolesErr
	}
	if f.roleSets == nil {
		f.roleSets = map[int64][]int64{}
	}
	f.roleSets[userID] = roleIDs
	return nil
}

func (f *fakeUsers) GetByIDFetchRoles(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByNameFetchRoles(_ context.Context, name string) (*models.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Name, name) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) ListFetchRoles(context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeRoles struct{ err error }

func (f fakeRoles) List(context.Context) ([]models.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Role{{ID: 1, Name: models.RoleAdmin}, {ID: 2, Name: models.RoleUser}}, nil
}

type fakeGroups struct {
	groups    map[int64]*models.Group
	nextID    int64
	createErr error
	updateErr error
	deleteErr error
	calls     int
}

func (f *fakeGroups) Create(_ context.Context, g *models.Group) (*models.Group, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	g.ID = f.nextID
	cp := *g
	f.groups[g.ID] = &cp
	return g, nil
}

func (f *fakeGroups) Update(_ context.Context, g *models.Group) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *g
	f.groups[g.ID] = &cp
	return nil
}

func (f *fakeGroups) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.groups, id)
	return nil
}

func (f *fakeGroups) ListByUser(_ context.Context, userID int64) ([]*models.Group, error) {
	var out []*models.Group
	for _, g := range f.groups {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeGroups) GetByIDFetchUser(_ context.Context, id int64) (*models.Group, error) {
	f.calls++
	g, ok := f.groups[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *g
	cp.User = &models.User{ID: g.UserID}
	return &cp, nil
}

type fakeEntries struct {
	entries   map[int64]*models.Entry
	nextID    int64
	lastQuery *entries.Query
	createErr error
	updateErr error
}

func (f *fakeEntries) Find(_ context.Context, q entries.Query) ([]*models.Entry, error) {
	f.lastQuery = &q
	var out []*models.Entry
	for _, e := range f.entries {
		if e.UserID != q.UserID {
			continue
		}
		if q.GroupID != nil && (e.GroupID == nil || *e.GroupID != *q.GroupID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeEntries) GetByIDFetchAll(_ context.Context, id int64) (*models.Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *e
	cp.User = &models.User{ID: e.UserID}
	return &cp, nil
}

func (f *fakeEntries) Create(_ context.Context, e *models.Entry) (*models.Entry, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	e.ID = f.nextID
	cp := *e
	f.entries[e.ID] = &cp
	return e, nil
}

func (f *fakeEntries) Update(_ context.Context, e *models.Entry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.entries[e.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *e
	f.entries[e.ID] = &cp
	return nil
}

func (f *fakeEntries) Delete(_ context.Context, id int64) error {
	if _, ok := f.entries[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.entries, id)
	return nil
}

type fakeRefresh struct {
	tokens        map[string]*models.RefreshToken
	deletedByUser []int64
	// stolen makes Consume lose the race to another redeemer.
	stolen bool
}

func (f *fakeRefresh) Create(_ context.Context, userID int64, token string, validity time.Duration) error {
	f.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (f *fakeRefresh) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRefresh) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	t, ok := f.tokens[token]
	delete(f.tokens, token)
	if !ok || f.stolen {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeRefresh) Delete(_ context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

func (f *fakeRefresh) DeleteByUser(_ context.Context, userID int64) error {
	f.deletedByUser = append(f.deletedByUser, userID)
	for k, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, k)
		}
	}
	return nil
}

func (f *fakeRefresh) tokensOf(userID int64) []string {
	var out []string
	for k, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

type fakeRepoManager struct {
	users   *fakeUsers
	roles   fakeRoles
	groups  *fakeGroups
	entries *fakeEntries
	refresh *fakeRefresh
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:   &fakeUsers{users: map[int64]*models.User{}, nextID: 100},
		groups:  &fakeGroups{groups: map[int64]*models.Group{}, nextID: 100},
		entries: &fakeEntries{entries: map[int64]*models.Entry{}, nextID: 1000},
		refresh: &fakeRefresh{tokens: map[string]*models.RefreshToken{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return m.users }
func (m *fakeRepoManager) Roles(dbx.DBTX) roles.Repository               { return m.roles }
func (m *fakeRepoManager) Groups(dbx.DBTX) groups.Repository             { return m.groups }
func (m *fakeRepoManager) Entries(dbx.DBTX) entries.Repository           { return m.entries }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}
