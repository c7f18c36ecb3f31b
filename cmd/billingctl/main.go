package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/activation"
	"github.com/ManuelReschke/TalentFox/internal/pkg/billing"
	"github.com/ManuelReschke/TalentFox/internal/pkg/cache"
	"github.com/ManuelReschke/TalentFox/internal/pkg/database"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/mail"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

func main() {
	env.SetupEnvFile()
	log := logger.Setup(logger.ConfigForEnvironment("dev", env.GetEnv("LOG_LEVEL", "warn")))
	defer log.Sync() //nolint:errcheck

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := database.SetupDatabase(); err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	db := database.GetDB()
	tenants := repository.NewTenantRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "duplicates":
		err = duplicates(ctx, tenants)
	case "tenant":
		if len(os.Args) < 3 {
			log.Fatal("tenant needs a slug")
		}
		err = showTenant(ctx, tenants, os.Args[2])
	case "session":
		if len(os.Args) < 3 {
			log.Fatal("session needs a checkout session id")
		}
		err = showSession(ctx, newBillingService(), os.Args[2])
	case "finalize":
		if len(os.Args) < 3 {
			log.Fatal("finalize needs a checkout session id")
		}
		slug := ""
		if len(os.Args) > 3 {
			slug = os.Args[3]
		}
		err = finalize(ctx, newBillingService(), os.Args[2], slug)
	case "events":
		limit := 20
		if len(os.Args) > 2 {
			if limit, err = strconv.Atoi(os.Args[2]); err != nil {
				log.Fatal("invalid limit", zap.Error(err))
			}
		}
		err = events(ctx, billing.NewRepository(db), limit)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal(os.Args[1]+" failed", zap.Error(err))
	}
}

func newBillingService() *billing.Service {
	cfg := billing.StripeConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.L().Fatal("stripe is not configured", zap.Error(err))
	}
	db := database.GetDB()
	resolver := tenancy.NewResolver(repository.NewTenantRepository(db), cache.GetClient(), env.BaseDomain())
	admins := activation.NewService(db, mail.NewFromEnv(), activation.OptionsFromEnv())
	return billing.NewServiceFromDB(db, billing.NewStripeGateway(cfg), admins, billing.Options{
		BaseDomain:      env.BaseDomain(),
		Prices:          cfg.Prices,
		OnTenantChanged: resolver.Invalidate,
	})
}

// duplicates lists customer ids mapped to more than one tenant. The list
// must be empty; any row needs manual cleanup.
func duplicates(ctx context.Context, tenants repository.TenantRepository) error {
	dups, err := tenants.FindDuplicateCustomers(ctx)
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		fmt.Println("no duplicate stripe customers")
		return nil
	}
	for _, d := range dups {
		fmt.Printf("%s\t%d tenants\n", d.StripeCustomerID, d.TenantCount)
	}
	return fmt.Errorf("%d duplicate stripe customers", len(dups))
}

func showTenant(ctx context.Context, tenants repository.TenantRepository, slug string) error {
	tenant, err := tenants.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"id":                   tenant.ID,
		"slug":                 tenant.Slug,
		"name":                 tenant.Name,
		"domain":               tenant.Domain,
		"plan":                 tenant.Plan,
		"status":               tenant.Status,
		"stripe_customer":      tenant.CustomerID(),
		"stripe_subscription":  tenant.SubscriptionID(),
		"current_period_end":   tenant.CurrentPeriodEnd,
		"cancel_at_period_end": tenant.CancelAtPeriodEnd,
	})
}

// showSession prints the checkout session and the tenant finalize would pick,
// without writing anything.
func showSession(ctx context.Context, svc *billing.Service, sessionID string) error {
	res, err := svc.ResolveSession(ctx, sessionID, "")
	if err != nil {
		return err
	}
	out := map[string]interface{}{
		"session":    res.Session,
		"matched_by": res.MatchedBy,
	}
	if res.Tenant != nil {
		out["tenant"] = res.Tenant.Slug
	}
	if ev, err := svc.Ledger().GetWebhookEvent(ctx, models.FinalizeEventID(sessionID)); err == nil {
		out["ledger"] = ev
	}
	return printJSON(out)
}

func finalize(ctx context.Context, svc *billing.Service, sessionID, slug string) error {
	res, err := svc.Finalize(ctx, sessionID, slug)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"tenant":            res.Tenant.Slug,
		"created":           res.Created,
		"already_processed": res.AlreadyProcessed,
		"admin_provisioned": res.AdminProvisioned,
	})
}

func events(ctx context.Context, ledger billing.Repository, limit int) error {
	rows, err := ledger.ListWebhookEvents(ctx, limit)
	if err != nil {
		return err
	}
	for _, ev := range rows {
		state := "pending"
		switch {
		case ev.IsDone():
			state = "done"
		case ev.ProcessingError != "":
			state = "failed: " + ev.ProcessingError
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", ev.CreatedAt.Format(time.RFC3339), ev.ID, ev.Type, state)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/billingctl [command]")
	fmt.Println("Commands:")
	fmt.Println("  duplicates            - stripe customers mapped to more than one tenant")
	fmt.Println("  tenant <slug>         - billing state of a tenant")
	fmt.Println("  session <id>          - checkout session and tenant resolution dry-run")
	fmt.Println("  finalize <id> [slug]  - force finalize a checkout session (idempotent)")
	fmt.Println("  events [n]            - most recent ledger rows")
}
