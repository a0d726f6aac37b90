package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/content"
	"github.com/sharesphere/sharesphere/pkg/moderation"
	"github.com/sharesphere/sharesphere/pkg/spheres"
)

var (
	dbURL   = flag.String("db-url", getEnv("SHARESPHERE_POSTGRES_URL", ""), "PostgreSQL connection URL")
	timeout = flag.Duration("timeout", 2*time.Minute, "Overall migration timeout")
)

func main() {
	flag.Parse()

	if *dbURL == "" {
		logrus.Fatal("Database URL is required (--db-url or SHARESPHERE_POSTGRES_URL)")
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logrus.Fatalf("Failed to ping database: %v", err)
	}

	sets := []struct {
		table      string
		migrations []authz.Migration
	}{
		{"authz_migrations", authz.GetMigrations()},
		{"spheres_migrations", spheres.GetMigrations()},
		{"content_migrations", content.GetMigrations()},
		{"moderation_migrations", moderation.GetMigrations()},
	}

	for _, set := range sets {
		if err := authz.RunMigrationSet(ctx, db, set.table, set.migrations); err != nil {
			logrus.Fatalf("Migration set %s failed: %v", set.table, err)
		}
		logrus.Infof("Migration set %s applied", set.table)
	}

	logrus.Info("All migrations applied")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
