package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/fastmart-backend/internal/users"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	"github.com/angelmondragon/fastmart-backend/pkg/db"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/security"
)

const tempPasswordLength = 16

// admin is the provisioning path for the admin flag; the HTTP surface never
// grants it.
func main() {
	logg := logger.New(logger.Options{ServiceName: "admin"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "grant", "admin command: grant|revoke|create")
	email := flag.String("email", "", "target user email")
	flag.Parse()

	target := strings.ToLower(strings.TrimSpace(*email))
	if target == "" {
		fail("missing -email")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":   cfg.App.Env,
		"cmd":   *cmd,
		"email": target,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	repo := users.NewRepository(dbClient.DB())

	switch *cmd {
	case "grant", "revoke":
		ok, err := repo.SetAdmin(ctx, target, *cmd == "grant")
		if err != nil {
			logg.Error(ctx, "failed to update admin flag", err)
			os.Exit(1)
		}
		if !ok {
			fail("no user with email %s", target)
		}
		logg.Info(ctx, "admin flag updated")
		fmt.Printf("%s: %s\n", *cmd, target)

	case "create":
		password, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			fail("generate password: %v", err)
		}
		hash, err := security.HashPassword(password, cfg.Password)
		if err != nil {
			fail("hash password: %v", err)
		}
		user, err := repo.Create(ctx, users.CreateUserDTO{Email: target, PasswordHash: hash, IsAdmin: true})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				fail("user %s already exists; use -cmd=grant", target)
			}
			logg.Error(ctx, "failed to create admin", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "user_id", user.ID.String()), "admin user created")
		fmt.Printf("created admin %s with temporary password %s\n", target, password)

	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
