package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"kitbuild/pkg/config"
	"kitbuild/pkg/db"
)

func main() {
	down := flag.Bool("down", false, "roll back one migration instead of applying all")
	flag.Parse()

	cfg := config.Load()
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations"
	}

	// Uses DIRECT_URL if set; poolers cannot run migrations.
	run := db.Migrate
	if *down {
		run = db.Down
	}
	if err := run(cfg.MigrationsPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	// Sanity check that the runtime connection opens too (DATABASE_URL if set).
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime db open failed: %v\n", err)
		os.Exit(1)
	}
	pool.Close()

	if *down {
		fmt.Println("rolled back one migration")
		return
	}
	fmt.Println("migrations applied")
}
