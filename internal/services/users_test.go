package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendWelcome(_ context.Context, toEmail, _ string) error {
	m.sent = append(m.sent, toEmail)
	return m.err
}

func TestRegister(t *testing.T) {
	e := newEnv(t, ScopeUser)
	mailer := &recordingMailer{}
	e.userSvc.mailer = mailer

	u, err := e.userSvc.Register(context.Background(), RegisterInput{Email: "  Ada@Example.com ", Name: "Ada", Password: "analytic1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, entity.RoleUser, u.Role)
	assert.NotEqual(t, "analytic1", u.PasswordHash)
	assert.Equal(t, []string{"ada@example.com"}, mailer.sent)

	_, err = e.userSvc.Register(context.Background(), RegisterInput{Email: "ADA@example.com", Name: "Ada", Password: "analytic1"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRegister_WelcomeFailureIsIgnored(t *testing.T) {
	e := newEnv(t, ScopeUser)
	e.userSvc.mailer = &recordingMailer{err: errBoom}

	_, err := e.userSvc.Register(context.Background(), RegisterInput{Email: "a@b.io", Name: "A", Password: "abcdefg1"})
	assert.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t, ScopeUser)
	tests := []struct {
		in   RegisterInput
		want string
	}{
		{RegisterInput{Name: "A", Password: "abcdefg1"}, "Email is required"},
		{RegisterInput{Email: "a@b.io", Password: "abcdefg1"}, "Name is required"},
		{RegisterInput{Email: "a@b.io", Name: "A"}, "Password is required"},
		{RegisterInput{Email: "not-an-email", Name: "A", Password: "abcdefg1"}, "Invalid email format"},
		{RegisterInput{Email: "a@b.io", Name: "A", Password: "abc1"}, "Password must be at least 8 characters long"},
		{RegisterInput{Email: "a@b.io", Name: "A", Password: "12345678"}, "Password must contain at least one letter"},
		{RegisterInput{Email: "a@b.io", Name: "A", Password: "abcdefgh"}, "Password must contain at least one number"},
		{RegisterInput{Email: "a@b.io", Name: "A", Password: strings.Repeat("a1", 41)}, "Password must be at most 72 bytes long"},
		{RegisterInput{Email: "a@b.io", Name: "A", Password: "pässwörd1" + strings.Repeat("é", 32)}, "Password must be at most 72 bytes long"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := e.userSvc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Equal(t, tt.want, apperrors.PublicMessage(err))
		})
	}
}

func TestRegister_PasswordAtBcryptLimit(t *testing.T) {
	e := newEnv(t, ScopeUser)
	password := strings.Repeat("a1", 36)

	_, err := e.userSvc.Register(context.Background(), RegisterInput{Email: "long@b.io", Name: "A", Password: password})
	require.NoError(t, err)

	_, err = e.userSvc.Authenticate(context.Background(), "long@b.io", password)
	assert.NoError(t, err)
}

func TestRegisterAdmin(t *testing.T) {
	e := newEnv(t, ScopeUser)
	in := RegisterInput{Email: "root@example.com", Name: "Root", Password: "s3cretpass"}

	in.AdminKey = "wrong"
	_, err := e.userSvc.RegisterAdmin(context.Background(), in)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	in.AdminKey = ""
	_, err = e.userSvc.RegisterAdmin(context.Background(), in)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	in.AdminKey = "let-me-in"
	u, err := e.userSvc.RegisterAdmin(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
}

func TestRegisterAdmin_NotConfigured(t *testing.T) {
	e := newEnv(t, ScopeUser)
	e.userSvc.adminKey = ""
	_, err := e.userSvc.RegisterAdmin(context.Background(), RegisterInput{Email: "r@x.io", Name: "R", Password: "s3cretpass", AdminKey: "k"})
	assert.Equal(t, apperrors.KindNotImplemented, apperrors.KindOf(err))
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t, ScopeUser)
	_, err := e.userSvc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Name: "Ada", Password: "analytic1"})
	require.NoError(t, err)

	u, err := e.userSvc.Authenticate(context.Background(), "ADA@example.com", "analytic1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = e.userSvc.Authenticate(context.Background(), "ada@example.com", "wrongpass1")
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
	_, err = e.userSvc.Authenticate(context.Background(), "nobody@example.com", "analytic1")
	assert.Equal(t, "Invalid email or password", apperrors.PublicMessage(err))
	_, err = e.userSvc.Authenticate(context.Background(), "", "")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestAuthenticate_PasswordlessAccount(t *testing.T) {
	e := newEnv(t, ScopeUser)
	_, err := e.userSvc.FindOrCreateOAuthUser(context.Background(), "g@example.com", "G", "")
	require.NoError(t, err)

	_, err = e.userSvc.Authenticate(context.Background(), "g@example.com", "anything1")
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestFindOrCreateOAuthUser(t *testing.T) {
	e := newEnv(t, ScopeUser)
	first, err := e.userSvc.FindOrCreateOAuthUser(context.Background(), "Grace@Example.com", "", "https://pic")
	require.NoError(t, err)
	assert.Equal(t, "grace", first.Name)
	assert.Equal(t, "https://pic", first.ProfilePicture)

	again, err := e.userSvc.FindOrCreateOAuthUser(context.Background(), "grace@example.com", "Grace", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestSessions(t *testing.T) {
	e := newEnv(t, ScopeUser)
	u := e.user(t, entity.RoleAdmin)

	s, err := e.userSvc.CreateSession(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, s.IsAdmin)
	assert.Equal(t, u.Email, s.Email)
	assert.NotNil(t, u.LastLogin)
	assert.Contains(t, e.users.Touched, u.ID)

	got, err := e.userSvc.ResolveSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, e.userSvc.DestroySession(context.Background(), s.ID))
	_, err = e.userSvc.ResolveSession(context.Background(), s.ID)
	assert.Equal(t, "Authentication required", apperrors.PublicMessage(err))
}

func TestResolveSession_DeletedUser(t *testing.T) {
	e := newEnv(t, ScopeUser)
	u := e.user(t, entity.RoleUser)
	s, err := e.userSvc.CreateSession(context.Background(), u)
	require.NoError(t, err)

	e.users.Remove(u.ID)
	_, err = e.userSvc.ResolveSession(context.Background(), s.ID)
	assert.Equal(t, "Invalid session, please login again", apperrors.PublicMessage(err))
	_, stillThere := e.sessions.ByID[s.ID]
	assert.False(t, stillThere)
}

func TestResolveSession_Expired(t *testing.T) {
	e := newEnv(t, ScopeUser)
	u := e.user(t, entity.RoleUser)
	s, err := e.userSvc.CreateSession(context.Background(), u)
	require.NoError(t, err)

	e.userSvc.now = func() time.Time { return s.ExpiresAt.Add(time.Second) }
	_, err = e.userSvc.ResolveSession(context.Background(), s.ID)
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))

	_, err = e.userSvc.ResolveSession(context.Background(), uuid.New())
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(err))
}

func TestPurgeExpiredSessions(t *testing.T) {
	e := newEnv(t, ScopeUser)
	u := e.user(t, entity.RoleUser)
	_, err := e.userSvc.CreateSession(context.Background(), u)
	require.NoError(t, err)

	e.userSvc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := e.userSvc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserStats(t *testing.T) {
	e := newEnv(t, ScopeUser)
	u := e.user(t, entity.RoleUser)
	_, err := e.datasetSvc.Upload(context.Background(), u.ID, csvFile("a.csv", "x,y\n1,2\n"))
	require.NoError(t, err)
	_, err = e.querySvc.Execute(context.Background(), u, QueryRequest{Query: "sum of x"})
	require.NoError(t, err)

	stats, err := e.userSvc.Stats(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, UserStats{Datasets: 1, Queries: 1}, *stats)
}
