package main

import (
	"os"
	"strings"

	"github.com/nimasrn/loyalty-engine/internal/config"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
)

const defaultMigrationDir = "./migrations"

// usage: cli [--env=.env] [--dir=./migrations]
func main() {
	defer logger.Sync()

	if err := config.Load(getEnvPath()); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Get()

	pgConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}

	dir := getMigrationPath()
	if dir == "" {
		os.Exit(1)
	}
	if err := pg.Migrate(pgConf, dir); err != nil {
		logger.Error("migration: error running migrations", "dir", dir, "error", err)
		os.Exit(1)
	}
}

func argValue(name string) (string, bool) {
	for _, v := range os.Args[1:] {
		if value, ok := strings.CutPrefix(v, "--"+name+"="); ok {
			return value, true
		}
	}
	return "", false
}

// getEnvPath falls back to ./.env when it exists and runs on the environment alone otherwise.
func getEnvPath() string {
	path, ok := argValue("env")
	if !ok {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if ok {
			logger.Error("failed to open the passed env file", "path", path, "error", err)
		}
		return ""
	}
	return path
}

func getMigrationPath() string {
	dir, ok := argValue("dir")
	if !ok {
		dir = defaultMigrationDir
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Error("failed to open the migration directory", "dir", dir, "error", err)
		return ""
	}
	return dir
}
