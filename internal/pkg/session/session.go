package session

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/internal/pkg/cache"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

var sessionStore *session.Store

var ErrStoreNotInitialized = errors.New("session store not initialized")

func NewSessionStore() *session.Store {
	// Get Redis client configuration from existing cache setup
	cacheClient := cache.GetClient()
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	// Sessions use database 1 (cache uses DB 0)
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     env.GetEnvDuration("SESSION_TTL", 12*time.Hour),
		KeyLookup:      "cookie:talentfox_session",
	})

	return sessionStore
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// SetSessionStore replaces the process store; tests use an in-memory store.
func SetSessionStore(store *session.Store) {
	sessionStore = store
}

// Login binds user to the session and rotates the session id.
func Login(c *fiber.Ctx, user *models.User) error {
	if sessionStore == nil {
		return ErrStoreNotInitialized
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyTenantID, user.TenantID)
	sess.Set(usercontext.KeyEmail, user.Email)
	sess.Set(usercontext.KeyRole, user.Role)
	return sess.Save()
}

// Logout destroys the session.
func Logout(c *fiber.Ctx) error {
	if sessionStore == nil {
		return ErrStoreNotInitialized
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// Current returns the user bound to the session, or ok=false.
func Current(c *fiber.Ctx) (usercontext.UserContext, bool) {
	if sessionStore == nil {
		return usercontext.UserContext{}, false
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return usercontext.UserContext{}, false
	}
	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		return usercontext.UserContext{}, false
	}
	tenantID, _ := sess.Get(usercontext.KeyTenantID).(uint)
	email, _ := sess.Get(usercontext.KeyEmail).(string)
	role, _ := sess.Get(usercontext.KeyRole).(string)
	return usercontext.UserContext{
		UserID:     userID,
		TenantID:   tenantID,
		Email:      email,
		Role:       role,
		IsLoggedIn: true,
		IsAdmin:    role == models.ROLE_ADMIN,
	}, true
}
