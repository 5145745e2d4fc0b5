package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"duet/internal/config"
	"duet/internal/database"
	"duet/internal/logger"
	"duet/internal/security"
	"duet/internal/service"
)

func main() {
	// Define subcommands
	purgeCmd := flag.NewFlagSet("purge", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)

	// Purge flags
	olderThan := purgeCmd.Duration("older-than", 30*24*time.Hour, "Remove rows soft-deleted longer ago than this")

	// Token flags
	tokenUser := tokenCmd.Int64("user-id", 0, "User to issue a bearer token for (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	deps := service.Deps{DB: db, Logger: log}

	switch os.Args[1] {
	case "purge":
		purgeCmd.Parse(os.Args[2:])
		res, err := service.NewMaintenanceService(deps).PurgeDeleted(ctx, *olderThan)
		if err != nil {
			log.Fatal("purge failed", "error", err)
		}
		fmt.Printf("Purged %d rows\n", res.Total())

	case "token":
		tokenCmd.Parse(os.Args[2:])
		if *tokenUser <= 0 {
			fmt.Println("Error: -user-id flag is required")
			tokenCmd.PrintDefaults()
			os.Exit(1)
		}
		handleToken(ctx, cfg, service.NewUserService(deps), *tokenUser, log)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleToken(ctx context.Context, cfg *config.Config, users *service.UserService, userID int64, log *logger.Logger) {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		log.Fatal("failed to load user", "user_id", userID, "error", err)
	}
	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal("invalid token configuration", "error", err)
	}
	token, err := tokens.Issue(user.ID)
	if err != nil {
		log.Fatal("failed to issue token", "error", err)
	}
	fmt.Println(token)
}

func printUsage() {
	fmt.Println("Duet maintenance tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  maintenance purge [-older-than=720h]")
	fmt.Println("  maintenance token -user-id=ID")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  purge   Hard-delete rows soft-deleted before the retention window")
	fmt.Println("  token   Print a bearer token for an existing user")
}
