package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
)

var testPrices = Prices{Starter: "price_starter", Growth: "price_growth", Enterprise: "price_enterprise"}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Tenant{}, &models.WebhookEvent{}))
	return db
}

// fakeGateway serves checkout sessions and events from memory.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]*CheckoutSession
	events    map[string]*Event
	customers []string
	checkouts []CheckoutSessionRequest
	getCalls  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*CheckoutSession{}, events: map[string]*Event{}}
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers = append(g.customers, email)
	return "cus_new", nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, req)
	return &CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.test/cs_new"}, nil
}

func (g *fakeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	sess, ok := g.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (g *fakeGateway) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/" + customerID + "?return=" + returnURL, nil
}

// ConstructEvent treats the payload as the event id and the signature as
// the validity flag.
func (g *fakeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if signature != "valid" {
		return nil, ErrInvalidSignature
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	event, ok := g.events[string(payload)]
	if !ok {
		return nil, ErrInvalidPayload
	}
	return event, nil
}

func (g *fakeGateway) addPaidSession(id, customerID, subscriptionID, email string, metadata map[string]string) *CheckoutSession {
	end := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	sess := &CheckoutSession{
		ID:             id,
		Status:         "complete",
		PaymentStatus:  "paid",
		CustomerID:     customerID,
		CustomerEmail:  email,
		Metadata:       metadata,
		SubscriptionID: subscriptionID,
		Subscription: &Subscription{
			ID:               subscriptionID,
			CustomerID:       customerID,
			Status:           "active",
			PriceID:          "price_growth",
			CurrentPeriodEnd: &end,
		},
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}
	g.sessions[id] = sess
	return sess
}

type fakeProvisioner struct {
	mu     sync.Mutex
	admins map[uint]string
	err    error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{admins: map[uint]string{}}
}

func (p *fakeProvisioner) ProvisionAdmin(ctx context.Context, tenant *models.Tenant, email, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	if _, ok := p.admins[tenant.ID]; ok {
		return false, nil
	}
	p.admins[tenant.ID] = email
	return true, nil
}

type testEnv struct {
	db       *gorm.DB
	gateway  *fakeGateway
	admins   *fakeProvisioner
	tenants  repository.TenantRepository
	service  *Service
	changed  []string
	ledger   Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	env := &testEnv{
		db:      db,
		gateway: newFakeGateway(),
		admins:  newFakeProvisioner(),
		tenants: repository.NewTenantRepository(db),
		ledger:  NewRepository(db),
	}
	env.service = NewService(env.ledger, env.tenants, env.gateway, env.admins, Options{
		BaseDomain: "talentfox.test",
		Prices:     testPrices,
		OnTenantChanged: func(ctx context.Context, slug string) {
			env.changed = append(env.changed, slug)
		},
		Logger: zap.NewNop(),
	})
	return env
}

func (e *testEnv) countTenants(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Tenant{}).Count(&n).Error)
	return n
}

func (e *testEnv) seedTenant(t *testing.T, slug, customerID, subscriptionID string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Slug:     slug,
		Name:     "Tenant " + slug,
		Domain:   slug + ".talentfox.test",
		Plan:     models.PLAN_STARTER,
		Status:   models.TENANT_STATUS_ACTIVE,
		Settings: models.DefaultTenantSettings(),
	}
	tenant.SetCustomerID(customerID)
	tenant.SetSubscriptionID(subscriptionID)
	require.NoError(t, e.tenants.Create(context.Background(), tenant))
	return tenant
}
