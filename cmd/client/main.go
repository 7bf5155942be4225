package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"route-recon/internal/catalog"
	"route-recon/internal/config"
	"route-recon/internal/console"
	"route-recon/internal/localstore"
	"route-recon/internal/realtime"
	"route-recon/internal/remote"
	"route-recon/internal/timeutil"
)

func main() {
	module := flag.String("module", "", "Form to open: inventory or sales (overrides config)")
	user := flag.String("user", "", "Display name (overrides config)")
	url := flag.String("url", "", "Exec endpoint URL (overrides config)")
	route := flag.String("route", "", "Route to open at start")
	date := flag.String("date", "", "Date to open at start (YYYY-MM-DD)")
	flag.Parse()

	cfg := config.Load()
	client := cfg.Client
	if *module != "" {
		client.Module = *module
	}
	if *user != "" {
		client.UserName = *user
	}
	if *url != "" {
		client.RemoteURL = *url
	}
	if client.Module != realtime.ModuleInventory && client.Module != realtime.ModuleSales {
		log.Fatalf("unknown module %q, want inventory or sales", client.Module)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.Server.CatalogFile)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	store, err := localstore.Open(filepath.Join(client.DataDir, client.Module+".db"))
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()

	session, err := realtime.LoadSession(ctx, store, client.UserName, client.Module)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	var doc realtime.Document = realtime.NewInventoryDoc(cat)
	if client.Module == realtime.ModuleSales {
		doc = realtime.NewCashDoc(cat)
	}

	rc := remote.New(client.RemoteURL, client.RequestTimeout)
	engine, err := realtime.NewEngine(ctx, rc, store, doc, session, realtime.OptionsFrom(client))
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	log.Printf("[Client] %s (%s) on %s, module %s", session.UserName, session.UserID, client.RemoteURL, client.Module)

	if *route != "" || *date != "" {
		if *route != "" && !cat.HasRoute(*route) {
			log.Printf("[Client] Route %q is not in the catalog", *route)
		}
		if *date != "" && !timeutil.ValidDate(*date) {
			log.Fatalf("invalid date %q, want YYYY-MM-DD", *date)
		}
		if err := engine.Open(ctx, *route, *date); err != nil {
			log.Printf("[Client] Initial load failed: %v", err)
		}
	}

	term := console.New(engine, os.Stdin, os.Stdout)
	events, unsubscribe := engine.Bus.Subscribe(64, realtime.EventStatus, realtime.EventNotification, realtime.EventActiveUsers)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		term.Watch(runCtx, events)
	}()

	if err := term.Run(runCtx); err != nil {
		log.Printf("[Client] %v", err)
	}
	cancel()
	wg.Wait()
	unsubscribe()

	if engine.State.Dirty() {
		log.Println("[Client] Unsaved changes kept locally")
	}
	log.Println("[Client] Bye")
}
