package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/activation"
	"github.com/ManuelReschke/TalentFox/internal/pkg/session"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.JobPosting{},
		&models.WebhookEvent{},
		&models.ActivationToken{},
	))
	return db
}

type nopMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *nopMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

// testEnv is a sqlite backed set of repositories with one active tenant.
type testEnv struct {
	db         *gorm.DB
	repos      *repository.Repositories
	tenant     *models.Tenant
	mailer     *nopMailer
	activation *activation.Service
}

func newTestEnv(t *testing.T, plan string) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	e := &testEnv{
		db:     db,
		repos:  repository.NewRepositories(db),
		mailer: &nopMailer{},
	}
	e.activation = activation.NewService(db, e.mailer, activation.Options{LinkScheme: "http", Logger: zap.NewNop()})
	e.tenant = e.seedTenant(t, "acme", plan, models.TENANT_STATUS_ACTIVE)
	return e
}

func (e *testEnv) seedTenant(t *testing.T, slug, plan, status string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Slug:     slug,
		Name:     "Tenant " + slug,
		Domain:   slug + ".talentfox.test",
		Plan:     plan,
		Status:   status,
		Settings: models.DefaultTenantSettings(),
	}
	require.NoError(t, e.repos.Tenant.Create(context.Background(), tenant))
	return tenant
}

func (e *testEnv) seedUser(t *testing.T, email, role, status, password string) *models.User {
	t.Helper()
	user := &models.User{
		TenantID: e.tenant.ID,
		Name:     "User " + email,
		Email:    email,
		Role:     role,
		Status:   status,
	}
	if password != "" {
		require.NoError(t, user.SetPassword(password))
	}
	require.NoError(t, e.repos.User.Create(context.Background(), user))
	return user
}

// as returns a handler that loads the tenant fresh, like the tenant
// middleware does, and installs the user context of user (anonymous on nil).
func (e *testEnv) as(user *models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant, err := e.repos.Tenant.GetByID(c.UserContext(), e.tenant.ID)
		if err != nil {
			return err
		}
		usercontext.SetTenant(c, tenant)
		uc := usercontext.UserContext{}
		if user != nil {
			uc = usercontext.UserContext{
				UserID:     user.ID,
				TenantID:   user.TenantID,
				Email:      user.Email,
				Role:       user.Role,
				IsLoggedIn: true,
				IsAdmin:    user.IsAdmin(),
			}
		}
		usercontext.SetUserContext(c, uc)
		return c.Next()
	}
}

func useMemorySessions(t *testing.T) {
	t.Helper()
	prev := session.GetSessionStore()
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(prev) })
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return out
}
