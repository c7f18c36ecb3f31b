package controllers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/internal/pkg/assets"
)

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	m.objects[key] = body
	return "https://cdn.talentfox.test/" + key, nil
}

func newTenantApp(e *testEnv, admin *models.User, logos *assets.LogoUploader) *fiber.App {
	tc := NewTenantController(e.repos.Tenant, nil, logos)
	app := fiber.New()
	app.Use(e.as(admin))
	app.Get("/tenant", tc.HandleGet)
	app.Put("/tenant", tc.HandleUpdate)
	app.Put("/tenant/logo", tc.HandleUploadLogo)
	return app
}

func TestTenantController_Update(t *testing.T) {
	e := newTestEnv(t, models.PLAN_GROWTH)
	admin := e.seedUser(t, "ada@acme.test", models.ROLE_ADMIN, models.STATUS_ACTIVE, "correct horse")
	app := newTenantApp(e, admin, nil)

	resp, body := doJSON(t, app, "PUT", "/tenant", map[string]interface{}{
		"name":         "Acme Corporation",
		"branding":     map[string]string{"primary_color": "#ff8800"},
		"careers_page": map[string]interface{}{"headline": "Build with us"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme Corporation", body["name"])

	stored, err := e.repos.Tenant.GetByID(context.Background(), e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "#ff8800", stored.SettingsSection("branding")["primary_color"])
	assert.Equal(t, "Build with us", stored.SettingsSection("careers_page")["headline"])
	assert.Equal(t, true, stored.SettingsSection("careers_page")["enabled"])

	resp, body = doJSON(t, app, "PUT", "/tenant", map[string]interface{}{
		"branding": map[string]string{"primary_color": "orange"},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "hexcolor", body["fields"].(map[string]interface{})["primarycolor"])

	resp, body = doJSON(t, app, "PUT", "/tenant", map[string]interface{}{
		"name": "Acme\r\nBcc: victim@example.com",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "singleline", body["fields"].(map[string]interface{})["name"])

	resp, body = doJSON(t, app, "GET", "/tenant", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme Corporation", body["name"])
}

func multipartLogo(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1024, 512))
	for x := 0; x < 1024; x++ {
		img.Set(x, 10, color.RGBA{R: 255, A: 255})
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestTenantController_UploadLogo(t *testing.T) {
	e := newTestEnv(t, models.PLAN_GROWTH)
	admin := e.seedUser(t, "ada@acme.test", models.ROLE_ADMIN, models.STATUS_ACTIVE, "correct horse")
	store := &memoryStore{objects: map[string][]byte{}}
	app := newTenantApp(e, admin, assets.NewLogoUploader(store))

	body, contentType := multipartLogo(t)
	req := httptest.NewRequest("PUT", "/tenant/logo", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://cdn.talentfox.test/tenants/acme/logo.png", decodeBody(t, resp)["logo_url"])
	assert.Contains(t, store.objects, "tenants/acme/logo.png")

	stored, err := e.repos.Tenant.GetByID(context.Background(), e.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.talentfox.test/tenants/acme/logo.png", stored.SettingsSection("branding")["logo_url"])
}

func TestTenantController_UploadLogoErrors(t *testing.T) {
	e := newTestEnv(t, models.PLAN_GROWTH)
	admin := e.seedUser(t, "ada@acme.test", models.ROLE_ADMIN, models.STATUS_ACTIVE, "correct horse")

	body, contentType := multipartLogo(t)
	req := httptest.NewRequest("PUT", "/tenant/logo", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := newTenantApp(e, admin, nil).Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var garbage bytes.Buffer
	w := multipart.NewWriter(&garbage)
	part, err := w.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("not an image"))
	require.NoError(t, w.Close())
	req = httptest.NewRequest("PUT", "/tenant/logo", &garbage)
	req.Header.Set("Content-Type", w.FormDataContentType())
	app := newTenantApp(e, admin, assets.NewLogoUploader(&memoryStore{objects: map[string][]byte{}}))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, "PUT", "/tenant/logo", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
