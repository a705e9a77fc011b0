package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amrelngm6/crm-flutter-sub000/internal/blob"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailconn"
	"github.com/amrelngm6/crm-flutter-sub000/internal/mailsync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/model"
	"github.com/amrelngm6/crm-flutter-sub000/internal/store"
	"github.com/amrelngm6/crm-flutter-sub000/internal/sync"
	"github.com/amrelngm6/crm-flutter-sub000/internal/vault"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	accountID := flag.String("account", "", "sync a single account by id")
	poll := flag.Bool("poll", false, "keep running and poll all accounts periodically")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	v, err := vault.NewFromKeyring(cfg.Vault.Service)
	if err != nil {
		log.Fatalf("opening vault: %v", err)
	}

	blobs, err := blob.NewDiskStore(cfg.Attachments.Dir)
	if err != nil {
		log.Fatalf("opening attachment store: %v", err)
	}

	conns := mailconn.NewManager(v, cfg.Sync)
	orchestrator := sync.NewOrchestrator(
		db,
		conns,
		mailsync.NewFolderSyncer(db),
		mailsync.NewMessageSyncer(db, blobs, cfg.Sync),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *poll:
		log.Printf("[sync] polling every %s", cfg.Sync.PollInterval())
		orchestrator.RunPeriodic(ctx, cfg.Sync.PollInterval())

	case *accountID != "":
		report, err := orchestrator.SyncAccountByID(ctx, *accountID)
		if err != nil {
			log.Fatalf("syncing account %s: %v", *accountID, err)
		}
		logReport(report)

	default:
		reports, err := orchestrator.SyncAll(ctx)
		if err != nil {
			log.Fatalf("syncing accounts: %v", err)
		}
		failed := false
		for _, report := range reports {
			logReport(report)
			if report.ConnectionError != nil || report.CredentialError != nil {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	}
}

func logReport(report *sync.AccountSyncReport) {
	if report.AlreadySyncing {
		log.Printf("[sync] account %s: already syncing, skipped", report.AccountID)
		return
	}
	if report.CredentialError != nil {
		log.Printf("[sync] account %s: stored credential unusable, re-enter it: %v", report.AccountID, report.CredentialError)
		return
	}
	if report.ConnectionError != nil {
		log.Printf("[sync] account %s: connect failed: %v", report.AccountID, report.ConnectionError)
		return
	}

	total := report.Total()
	log.Printf("[sync] account %s: folders +%d ~%d, messages %d fetched %d skipped %d failed",
		report.AccountID, report.Diff.Created, report.Diff.Updated,
		total.Fetched, total.Skipped, total.Failed)

	for _, f := range report.Folders {
		if f.Err != nil {
			log.Printf("[sync] account %s folder %s: %v", report.AccountID, f.FolderName, f.Err)
		}
	}
	if report.Cancelled {
		log.Printf("[sync] account %s: interrupted, progress saved", report.AccountID)
	}
}
