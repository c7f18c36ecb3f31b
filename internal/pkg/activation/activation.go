package activation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/mail"
)

const (
	DefaultTTL        = 48 * time.Hour
	MinPasswordLength = 8
)

var (
	ErrTokenInvalid = errors.New("activation token is invalid")
	ErrTokenExpired = errors.New("activation token has expired")
	ErrTokenUsed    = errors.New("activation token was already used")
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrUserDisabled = errors.New("user is disabled")
)

// Options configures the activation service.
type Options struct {
	TTL time.Duration
	// LinkScheme is the scheme of activation links on the tenant host.
	LinkScheme string
	Logger     *zap.Logger
	Now        func() time.Time
}

// OptionsFromEnv reads ACTIVATION_TOKEN_TTL.
func OptionsFromEnv() Options {
	scheme := "https"
	if env.IsDev() {
		scheme = "http"
	}
	return Options{
		TTL:        env.GetEnvDuration("ACTIVATION_TOKEN_TTL", DefaultTTL),
		LinkScheme: scheme,
	}
}

// Service issues and redeems one-time activation tokens and provisions the
// first administrator of a tenant.
type Service struct {
	db     *gorm.DB
	tokens repository.ActivationTokenRepository
	users  repository.UserRepository
	mailer mail.Mailer
	opts   Options
	log    *zap.Logger
}

// NewService creates an activation service. mailer may be nil; tokens are
// then issued without sending mail.
func NewService(db *gorm.DB, mailer mail.Mailer, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.LinkScheme == "" {
		opts.LinkScheme = "https"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	return &Service{
		db:     db,
		tokens: repository.NewActivationTokenRepository(db),
		users:  repository.NewUserRepository(db),
		mailer: mailer,
		opts:   opts,
		log:    log.Named("activation"),
	}
}

// Issue invalidates older tokens of the user and returns a fresh raw token.
func (s *Service) Issue(ctx context.Context, user *models.User) (string, error) {
	if err := s.tokens.InvalidateForUser(ctx, user.ID); err != nil {
		return "", fmt.Errorf("invalidate tokens: %w", err)
	}
	token, raw, err := models.NewActivationToken(user.ID, user.TenantID, s.opts.TTL)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token.ExpiresAt = s.opts.Now().Add(s.opts.TTL)
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return raw, nil
}

// Redeem consumes raw, sets the password and activates the user. Of two
// concurrent redeemers exactly one wins.
func (s *Service) Redeem(ctx context.Context, raw, password string) (*models.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tokens := s.tokens.WithTx(tx)
		token, err := tokens.GetByHash(ctx, models.HashActivationToken(raw))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if token.IsUsed() {
			return ErrTokenUsed
		}
		if token.IsExpired(s.opts.Now()) {
			return ErrTokenExpired
		}

		won, err := tokens.MarkUsed(ctx, token.ID)
		if err != nil {
			return err
		}
		if !won {
			return ErrTokenUsed
		}

		found, err := repository.NewUserRepository(tx).GetByID(ctx, token.TenantID, token.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if found.Status == models.STATUS_DISABLED {
			return ErrUserDisabled
		}
		if err := found.SetPassword(password); err != nil {
			return err
		}
		found.Status = models.STATUS_ACTIVE
		if err := tx.Save(found).Error; err != nil {
			return err
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user activated", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", user.TenantID))
	return &user, nil
}

// Resend issues a new token for an inactive user and mails it. Unknown or
// already active addresses are accepted silently.
func (s *Service) Resend(ctx context.Context, tenant *models.Tenant, email string) error {
	user, err := s.users.GetByEmail(ctx, tenant.ID, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Status != models.STATUS_INACTIVE {
		return nil
	}
	return s.issueAndSend(ctx, tenant, user)
}

// Invite creates an inactive user of tenant and mails the activation link. A
// failed delivery is logged; the user can request a new link.
func (s *Service) Invite(ctx context.Context, tenant *models.Tenant, email, name, role string) (*models.User, error) {
	user, err := models.NewInvitedUser(tenant.ID, email, name, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.issueAndSend(ctx, tenant, user); err != nil && !s.undelivered(tenant, err) {
		return nil, err
	}
	return user, nil
}

// ProvisionAdmin creates the first ADMIN of tenant from the checkout email
// unless the tenant already has one. A mail delivery failure is logged; the
// user can request a new link.
func (s *Service) ProvisionAdmin(ctx context.Context, tenant *models.Tenant, email, name string) (bool, error) {
	admins, err := s.users.CountAdmins(ctx, tenant.ID)
	if err != nil {
		return false, err
	}
	if admins > 0 {
		return false, nil
	}

	user, err := s.users.GetByEmail(ctx, tenant.ID, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = models.NewInvitedUser(tenant.ID, email, name, models.ROLE_ADMIN)
		if err != nil {
			return false, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	default:
		user.Role = models.ROLE_ADMIN
		if err := s.users.Update(ctx, user); err != nil {
			return false, err
		}
	}

	if user.Status == models.STATUS_INACTIVE {
		if err := s.issueAndSend(ctx, tenant, user); err != nil && !s.undelivered(tenant, err) {
			return false, err
		}
	}

	s.log.Info("tenant admin provisioned", zap.String("tenant", tenant.Slug), zap.Uint("user_id", user.ID))
	return true, nil
}

// ActivationLink returns the link that redeems raw on the tenant's portal.
func (s *Service) ActivationLink(tenant *models.Tenant, raw string) string {
	u := url.URL{
		Scheme:   s.opts.LinkScheme,
		Host:     tenant.Domain,
		Path:     "/activate",
		RawQuery: url.Values{"token": {raw}}.Encode(),
	}
	return u.String()
}

type sendError struct{ err error }

func (e *sendError) Error() string { return e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

func (s *Service) issueAndSend(ctx context.Context, tenant *models.Tenant, user *models.User) error {
	raw, err := s.Issue(ctx, user)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return nil
	}
	subject, body := mail.ActivationEmail(tenant.Name, user.Name, s.ActivationLink(tenant, raw))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return &sendError{err: err}
	}
	return nil
}

// undelivered logs mail delivery failures and reports whether err was one.
func (s *Service) undelivered(tenant *models.Tenant, err error) bool {
	var sendErr *sendError
	if !errors.As(err, &sendErr) {
		return false
	}
	s.log.Warn("activation mail not delivered", zap.String("tenant", tenant.Slug), zap.Error(err))
	return true
}
