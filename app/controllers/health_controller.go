package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

// HealthController reports whether the database is reachable
type HealthController struct {
	db *gorm.DB
}

// NewHealthController creates a new health controller
func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

// HandleHealth answers 200 when the database answers a ping within 2s.
func (hc *HealthController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	sqlDB, err := hc.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.L().Error("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "unavailable",
			"database": "down",
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "up"})
}
