package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/chxlky/kanban-api/internal/models"
)

// mockUserStore is an in-memory UserStore
type mockUserStore struct {
	users  map[string]*models.User
	byName map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:  make(map[string]*models.User),
		byName: make(map[string]string),
	}
}

func (m *mockUserStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, ok := m.byName[u.Username]; ok {
		return models.ErrConflict
	}
	u.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	cp := *u
	m.users[u.ID] = &cp
	m.byName[u.Username] = u.ID
	return nil
}

func (m *mockUserStore) UserByName(ctx context.Context, username string) (*models.User, error) {
	id, ok := m.byName[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m.users[id], nil
}

func (m *mockUserStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

type recordingProvisioner struct {
	users []string
	err   error
}

func (p *recordingProvisioner) ProvisionUser(ctx context.Context, userID string) error {
	p.users = append(p.users, userID)
	return p.err
}

func newTestService() (*Service, *mockUserStore, *recordingProvisioner) {
	store := newMockUserStore()
	prov := &recordingProvisioner{}
	return NewService(store, prov, "test-secret", 0, nil), store, prov
}

func TestSignUpAndLogin(t *testing.T) {
	s, store, prov := newTestService()
	ctx := context.Background()

	token, err := s.SignUp(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if len(prov.users) != 1 || prov.users[0] != "user-1" {
		t.Fatalf("expected boards to be provisioned once, got %v", prov.users)
	}
	if store.users["user-1"].PasswordHash == "pw" {
		t.Fatal("password stored in clear text")
	}

	user, err := s.Authenticate(ctx, "Bearer "+token)
	if err != nil || user.Username != "alice" {
		t.Fatalf("authenticate: %v %+v", err, user)
	}

	loginToken, err := s.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.Authenticate(ctx, "Bearer "+loginToken); err != nil {
		t.Fatalf("authenticate login token: %v", err)
	}
}

func TestSignUpErrors(t *testing.T) {
	s, _, prov := newTestService()
	ctx := context.Background()

	if _, err := s.SignUp(ctx, "", "pw"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.SignUp(ctx, "alice", "pw"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, err := s.SignUp(ctx, "alice", "other")
	if !errors.Is(err, models.ErrConflict) || err.Error() != "Username already exists" {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(prov.users) != 1 {
		t.Fatalf("duplicate signup should not provision, got %v", prov.users)
	}

	prov.err = errors.New("boom")
	if _, err := s.SignUp(ctx, "bob", "pw"); err == nil {
		t.Fatal("expected provisioning failure to surface")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()
	if _, err := s.SignUp(ctx, "alice", "pw"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"nobody", "pw"},
	} {
		_, err := s.Login(ctx, tc.user, tc.pass)
		if !errors.Is(err, models.ErrUnauthorized) || err.Error() != "Invalid credentials" {
			t.Errorf("%s/%s: expected invalid credentials, got %v", tc.user, tc.pass, err)
		}
	}
	if _, err := s.Login(ctx, "alice", ""); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	s, _, _ := newTestService()
	ctx := context.Background()
	good, err := s.SignUp(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	expired, _, _ := newTestService()
	expired.store = s.store
	expired.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	old, err := expired.issueToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewService(s.store, nil, "another-secret", 0, nil)
	forged, _ := other.issueToken("user-1")

	unknown, _ := s.issueToken("user-404")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := []struct {
		name, header, want string
	}{
		{"missing", "", "Token is missing!"},
		{"no scheme", good, "Token is missing!"},
		{"wrong scheme", "Basic " + good, "Token is invalid!"},
		{"garbage", "Bearer not.a.jwt", "Token is invalid!"},
		{"expired", "Bearer " + old, "Token is invalid!"},
		{"wrong secret", "Bearer " + forged, "Token is invalid!"},
		{"unknown user", "Bearer " + unknown, "Token is invalid!"},
		{"alg none", "Bearer " + none, "Token is invalid!"},
	}
	for _, tc := range cases {
		_, err := s.Authenticate(ctx, tc.header)
		if !errors.Is(err, models.ErrUnauthorized) || err.Error() != tc.want {
			t.Errorf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestTokenClaims(t *testing.T) {
	s, _, _ := newTestService()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	token, err := s.issueToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || !claims.ExpiresAt.Time.Equal(fixed.Add(24*time.Hour)) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}
