// Command admin runs one-off operator tasks against the database.
//
//	admin token -external-id user_2abc
//	admin set-role -external-id user_2abc -role admin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agt_platform/internal/app/service"
	"agt_platform/internal/common/security"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/identity"
	"agt_platform/internal/platform/config"
	"agt_platform/internal/platform/database"
	"agt_platform/internal/platform/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <token|set-role> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	externalID := fs.String("external-id", "", "identity provider user id")
	role := fs.String("role", "", "role to assign (set-role)")
	fs.Parse(args)
	if *externalID == "" {
		fmt.Fprintln(os.Stderr, "admin: -external-id is required")
		os.Exit(2)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel, "console")
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)
	gdb, err := database.OpenGorm(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open gorm session")
	}

	users := repository.NewGormUserRepository(gdb)
	audit := service.NewAuditService(repository.NewGormAuditRepository(gdb))
	auth := service.NewAuthService(users, security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp), identity.NewProvider(cfg), audit)

	switch cmd {
	case "token":
		resp, err := auth.IssueToken(ctx, *externalID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(resp.Token)
	case "set-role":
		u, err := users.FindByExternalID(ctx, *externalID)
		if err != nil {
			log.Fatal().Err(err).Str("external_id", *externalID).Msg("Unknown user")
		}
		// Bootstrap path: there is no admin actor yet, so the user is recorded as acting on itself.
		updated, err := auth.SetRole(ctx, u.ID, u.ID, *role)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set role")
		}
		fmt.Printf("%s is now %s\n", updated.ExternalID, updated.Role)
	default:
		usage()
	}
}
