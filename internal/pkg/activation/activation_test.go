package activation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// token extracts the raw token from the last activation link.
func (m *fakeMailer) token(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	body := m.sent[len(m.sent)-1].body
	_, rest, ok := strings.Cut(body, "token=")
	require.True(t, ok)
	raw, _, _ := strings.Cut(rest, `"`)
	return raw
}

type fixture struct {
	db      *gorm.DB
	mailer  *fakeMailer
	service *Service
	tenant  *models.Tenant
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Tenant{}, &models.User{}, &models.ActivationToken{}))

	tenant := &models.Tenant{
		Slug:     "acme",
		Name:     "Acme",
		Domain:   "acme.talentfox.test",
		Plan:     models.PLAN_STARTER,
		Status:   models.TENANT_STATUS_ACTIVE,
		Settings: models.DefaultTenantSettings(),
	}
	require.NoError(t, repository.NewTenantRepository(db).Create(context.Background(), tenant))

	f := &fixture{db: db, mailer: &fakeMailer{}, tenant: tenant, now: time.Now()}
	f.service = NewService(db, f.mailer, Options{
		TTL:    time.Hour,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return f.now },
	})
	return f
}

func TestProvisionAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.ProvisionAdmin(ctx, f.tenant, "Boss@Acme.test", "Jane")
	require.NoError(t, err)
	assert.True(t, created)

	user, err := repository.NewUserRepository(f.db).GetByEmail(ctx, f.tenant.ID, "boss@acme.test")
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, user.Role)
	assert.Equal(t, models.STATUS_INACTIVE, user.Status)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "boss@acme.test", f.mailer.sent[0].to)
	assert.Contains(t, f.mailer.sent[0].body, "https://acme.talentfox.test/activate?token=")

	created, err = f.service.ProvisionAdmin(ctx, f.tenant, "other@acme.test", "")
	require.NoError(t, err)
	assert.False(t, created, "tenant already has an admin")
	assert.Len(t, f.mailer.sent, 1)
}

func TestProvisionAdmin_MailFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")

	created, err := f.service.ProvisionAdmin(context.Background(), f.tenant, "boss@acme.test", "")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRedeem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.ProvisionAdmin(ctx, f.tenant, "boss@acme.test", "")
	require.NoError(t, err)
	raw := f.mailer.token(t)

	_, err = f.service.Redeem(ctx, raw, "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	user, err := f.service.Redeem(ctx, raw, "correct horse battery")
	require.NoError(t, err)
	assert.True(t, user.IsActive())
	assert.True(t, user.CheckPassword("correct horse battery"))

	_, err = f.service.Redeem(ctx, raw, "correct horse battery")
	assert.ErrorIs(t, err, ErrTokenUsed)

	_, err = f.service.Redeem(ctx, "deadbeef", "correct horse battery")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = f.service.Redeem(ctx, "", "correct horse battery")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeem_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.ProvisionAdmin(ctx, f.tenant, "boss@acme.test", "")
	require.NoError(t, err)
	raw := f.mailer.token(t)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.service.Redeem(ctx, raw, "correct horse battery")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssueInvalidatesOlderTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.service.Invite(ctx, f.tenant, "dev@acme.test", "Dev", models.ROLE_USER)
	require.NoError(t, err)
	first := f.mailer.token(t)

	second, err := f.service.Issue(ctx, user)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = f.service.Redeem(ctx, first, "correct horse battery")
	assert.ErrorIs(t, err, ErrTokenUsed)

	_, err = f.service.Redeem(ctx, second, "correct horse battery")
	assert.NoError(t, err)
}

func TestResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Invite(ctx, f.tenant, "dev@acme.test", "Dev", "")
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)

	require.NoError(t, f.service.Resend(ctx, f.tenant, "DEV@acme.test"))
	assert.Len(t, f.mailer.sent, 2)

	require.NoError(t, f.service.Resend(ctx, f.tenant, "nobody@acme.test"))
	assert.Len(t, f.mailer.sent, 2)

	_, err = f.service.Redeem(ctx, f.mailer.token(t), "correct horse battery")
	require.NoError(t, err)
	require.NoError(t, f.service.Resend(ctx, f.tenant, "dev@acme.test"))
	assert.Len(t, f.mailer.sent, 2, "active users get no new link")
}

func TestRedeem_DisabledUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.service.Invite(ctx, f.tenant, "dev@acme.test", "Dev", "")
	require.NoError(t, err)
	raw := f.mailer.token(t)

	user.Status = models.STATUS_DISABLED
	require.NoError(t, f.db.Save(user).Error)

	_, err = f.service.Redeem(ctx, raw, "correct horse battery")
	assert.ErrorIs(t, err, ErrUserDisabled)
}
