// cmd/seeder/main.go
package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	"github.com/unclebandit/pta-newsletter/internal/config"
	"github.com/unclebandit/pta-newsletter/internal/db"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

//go:embed seed/*.sql
var seeds embed.FS

var seedFiles = []string{
	"seed/demo.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.Any("error", err))
		os.Exit(1)
	}
	log := cfg.NewLogger()
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Error("connecting to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn, cfg.MigrationTable, log); err != nil {
		log.Error("running migrations", slog.Any("error", err))
		os.Exit(1)
	}

	schools, err := repository.NewSQLStore(conn).Repos().Sources.ListSchools(ctx)
	if err != nil {
		log.Error("listing schools", slog.Any("error", err))
		os.Exit(1)
	}
	if len(schools) > 0 {
		log.Info("database already seeded", slog.Int("schools", len(schools)))
	} else {
		for _, file := range seedFiles {
			content, err := seeds.ReadFile(file)
			if err != nil {
				log.Error("reading seed file", slog.String("file", file), slog.Any("error", err))
				os.Exit(1)
			}
			if _, err := conn.ExecContext(ctx, string(content)); err != nil {
				log.Error("executing seed file", slog.String("file", file), slog.Any("error", err))
				os.Exit(1)
			}
			log.Info("seeded", slog.String("file", file))
		}
	}

	// Development tokens for the seeded school.
	for _, actor := range []auth.Actor{
		{UserID: 1, SchoolID: 1, Roles: []string{auth.RoleBoard}},
		{UserID: 2, SchoolID: 1, Roles: []string{auth.RoleMember}},
	} {
		token, err := auth.GenerateJWT(actor, cfg.JWTSecret, 30*24*time.Hour)
		if err != nil {
			log.Error("signing token", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("%s token: %s\n", actor.Roles[0], token)
	}
	fmt.Println("Database seeding completed successfully!")
}
