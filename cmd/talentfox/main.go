package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/controllers"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/activation"
	"github.com/ManuelReschke/TalentFox/internal/pkg/assets"
	"github.com/ManuelReschke/TalentFox/internal/pkg/billing"
	"github.com/ManuelReschke/TalentFox/internal/pkg/cache"
	"github.com/ManuelReschke/TalentFox/internal/pkg/database"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/mail"
	"github.com/ManuelReschke/TalentFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/TalentFox/internal/pkg/router"
	"github.com/ManuelReschke/TalentFox/internal/pkg/session"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

// bodyLimit covers the 64 KB Stripe payload with headroom for the
// multipart logo upload.
const bodyLimit = 8 * 1024 * 1024

func main() {
	env.SetupEnvFile()
	logCfg := logger.ConfigForEnvironment(env.GetEnv("APP_ENV", "prod"), env.GetEnv("LOG_LEVEL", "info"))
	logCfg.Format = env.GetEnv("LOG_FORMAT", logCfg.Format)
	log := logger.Setup(logCfg)
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApplication(ctx)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		log.Info("listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

// NewApplication wires the services and routes. Background workers stop with ctx.
func NewApplication(ctx context.Context) (*fiber.App, error) {
	if err := database.SetupDatabase(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	db := database.GetDB()
	cache.SetupCache()
	session.NewSessionStore()

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()
	baseDomain := env.BaseDomain()
	resolver := tenancy.NewResolver(repos.Tenant, cache.GetClient(), baseDomain)

	activationService := activation.NewService(db, mail.NewFromEnv(), activation.OptionsFromEnv())

	stripeCfg := billing.StripeConfigFromEnv()
	if err := stripeCfg.Validate(); err != nil {
		return nil, err
	}
	portalScheme := "https"
	if env.IsDev() {
		portalScheme = "http"
	}
	billingService := billing.NewServiceFromDB(db, billing.NewStripeGateway(stripeCfg), activationService, billing.Options{
		BaseDomain:         baseDomain,
		Prices:             stripeCfg.Prices,
		PortalReturnScheme: portalScheme,
		OnTenantChanged:    resolver.Invalidate,
	})

	views := counter.NewJobViews(cache.GetClient(), db)
	viewsDone := make(chan struct{})
	go func() {
		defer close(viewsDone)
		views.Run(ctx, env.GetEnvDuration("VIEW_FLUSH_INTERVAL", time.Minute))
	}()

	var logos *assets.LogoUploader
	assetCfg, err := assets.LoadConfig()
	if err != nil {
		return nil, err
	}
	if assetCfg != nil {
		store, err := assets.NewS3Store(ctx, assetCfg)
		if err != nil {
			return nil, fmt.Errorf("asset storage: %w", err)
		}
		logos = assets.NewLogoUploader(store)
	} else {
		logger.L().Warn("S3_BUCKET not set, logo uploads are disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: bodyLimit,
		AppName:   "TalentFox",
	})

	// wait for the final view flush
	app.Hooks().OnShutdown(func() error {
		<-viewsDone
		return nil
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(), fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${host}${path}\n",
	}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
		Title:    "TalentFox API",
	}))

	// ROUTER
	router.InstallRouter(app, resolver, router.Controllers{
		Health:  controllers.NewHealthController(db),
		Billing: controllers.NewBillingController(billingService),
		Auth:    controllers.NewAuthController(repos.User, activationService),
		Tenant:  controllers.NewTenantController(repos.Tenant, resolver, logos),
		User:    controllers.NewUserController(repos.User, activationService),
		Job:     controllers.NewJobController(repos.JobPosting),
		Portal:  controllers.NewPortalController(repos.JobPosting, views),
	})

	return app, nil
}
