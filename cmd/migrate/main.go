package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/internal/pkg/database"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

func main() {
	env.SetupEnvFile()
	log := logger.Setup(logger.ConfigForEnvironment("dev", env.GetEnv("LOG_LEVEL", "info")))
	defer log.Sync() //nolint:errcheck

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	log.Info("connecting to database",
		zap.String("user", env.GetEnv("DB_USER", "talentfox")),
		zap.String("host", env.GetEnv("DB_HOST", "127.0.0.1")),
		zap.String("port", env.GetEnv("DB_PORT", "5432")),
		zap.String("database", env.GetEnv("DB_NAME", "talentfox")),
	)

	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_PATH", "migrations"), database.MigrationURL())
	if err != nil {
		log.Fatal("failed to initialize migrations", zap.Error(err))
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn("failed to close migration resources", zap.NamedError("source", sourceErr), zap.NamedError("database", dbErr))
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("migration up failed", zap.Error(err))
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no change: database is up to date")
		} else {
			log.Info("migrations applied")
		}

	case "down":
		// Roll back the last migration only
		if err := m.Steps(-1); err != nil {
			log.Fatal("rollback failed", zap.Error(err))
		}
		log.Info("last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal("invalid version number", zap.Error(err))
		}

		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("migration failed", zap.Uint64("version", version), zap.Error(err))
		} else if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no change: database already at version", zap.Uint64("version", version))
		} else {
			log.Info("migrated", zap.Uint64("version", version))
		}

	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info("no migrations applied yet")
				return
			}
			log.Fatal("failed to read migration version", zap.Error(err))
		}
		log.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
}
