package main

import (
	"context"
	"fmt"
	"log"

	"route-recon/internal/cache"
	"route-recon/internal/config"
	"route-recon/internal/db"
)

// Clears every saved record, the change feed and the live coordination
// keys. Clients keep their local stores; their cursors restart at zero on
// the next route selection.
func main() {
	fmt.Println("========================================")
	fmt.Println("   Reset route-recon data")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL SAVED COUNTS AND CASH RECORDS!")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	cfg := config.Load()
	pool := db.Connect(cfg)
	defer pool.Close()

	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	// RESTART IDENTITY also rewinds the feed sequence that clients poll by.
	tables := []string{"inventory_items", "cash_reconciliations", "change_feed"}
	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  - Cleared %s\n", table)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	if err := cache.Init(cfg); err != nil {
		fmt.Printf("  - Redis unavailable, presence and locks left to expire: %v\n", err)
	} else {
		defer cache.Close()
		for _, pattern := range []string{"presence:*", "lock:*", "proxy:*"} {
			cache.InvalidatePattern(ctx, pattern)
		}
		fmt.Println("  - Cleared presence, locks and proxy cache")
	}

	fmt.Println()
	fmt.Println("Reset complete.")
}
