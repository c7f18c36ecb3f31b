package router

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/TalentFox/app/controllers"
	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

func newTestApp(t *testing.T) (*fiber.App, *repository.Repositories) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Tenant{}, &models.User{}, &models.JobPosting{}))

	repos := repository.NewRepositories(db)
	resolver := tenancy.NewResolver(repos.Tenant, nil, "talentfox.test")
	app := fiber.New()
	InstallRouter(app, resolver, Controllers{
		Health: controllers.NewHealthController(db),
		Job:    controllers.NewJobController(repos.JobPosting),
		Portal: controllers.NewPortalController(repos.JobPosting, nil),
		Tenant: controllers.NewTenantController(repos.Tenant, resolver, nil),
	})
	return app, repos
}

func TestOpenAPIDocumentMatchesRoutes(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	app, _ := newTestApp(t)
	registered := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		path := r.Path
		if len(path) > 1 {
			path = strings.TrimRight(path, "/")
		}
		registered[r.Method+" "+path] = true
	}

	for path, item := range doc.Paths.Map() {
		fiberPath := strings.NewReplacer("{", ":", "}", "").Replace(path)
		for method := range item.Operations() {
			assert.True(t, registered[method+" "+fiberPath], "%s %s is documented but not routed", method, path)
		}
	}
}

func TestTenantScopedRoutes(t *testing.T) {
	app, repos := newTestApp(t)
	ctx := context.Background()
	for slug, status := range map[string]string{"acme": models.TENANT_STATUS_ACTIVE, "gone": models.TENANT_STATUS_CANCELED} {
		require.NoError(t, repos.Tenant.Create(ctx, &models.Tenant{
			Slug:     slug,
			Name:     "Tenant " + slug,
			Domain:   slug + ".talentfox.test",
			Plan:     models.PLAN_STARTER,
			Status:   status,
			Settings: models.DefaultTenantSettings(),
		}))
	}

	get := func(host, path string) int {
		req := httptest.NewRequest("GET", path, nil)
		req.Host = host
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, get("acme.talentfox.test", "/portal"))
	assert.Equal(t, fiber.StatusOK, get("acme.talentfox.test", "/portal/jobs"))
	assert.Equal(t, fiber.StatusPaymentRequired, get("gone.talentfox.test", "/portal"))
	assert.Equal(t, fiber.StatusNotFound, get("nope.talentfox.test", "/portal"))
	assert.Equal(t, fiber.StatusNotFound, get("talentfox.test", "/portal"))

	// API routes need a session
	assert.Equal(t, fiber.StatusUnauthorized, get("acme.talentfox.test", "/api/v1/jobs"))
	assert.Equal(t, fiber.StatusUnauthorized, get("acme.talentfox.test", "/api/v1/tenant"))
	assert.Equal(t, fiber.StatusNotFound, get("talentfox.test", "/api/v1/jobs"))

	assert.Equal(t, fiber.StatusOK, get("talentfox.test", "/health"))
}
