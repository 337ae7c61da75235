package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sakolwit/school-portal-api/internal/repository"
	"github.com/sakolwit/school-portal-api/internal/service"
	"github.com/sakolwit/school-portal-api/pkg/config"
	"github.com/sakolwit/school-portal-api/pkg/database"
	"github.com/sakolwit/school-portal-api/pkg/logger"
)

// One-shot maintenance tool: classifies historical conduct logs into terms
// and audits the cached totals. Safe to re-run at any time.
func main() {
	verifyOnly := flag.Bool("verify-only", false, "skip classification, only audit cached totals")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	conductRepo := repository.NewConductRepository(db, cfg.Conduct.AppendRetries)
	termRepo := repository.NewTermRepository(db)
	termSvc := service.NewTermService(termRepo, nil, logr)
	backfillSvc := service.NewBackfillService(conductRepo, termSvc, logr, cfg.Conduct.DefaultScore)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if !*verifyOnly {
		result, err := backfillSvc.Run(ctx)
		if err != nil {
			logr.Fatal("backfill failed", zap.Error(err))
		}
		logr.Info("backfill complete",
			zap.Int("scanned", result.Scanned),
			zap.Int("classified", result.Classified),
			zap.Strings("unmatched", result.Unmatched))
	}

	verify, err := backfillSvc.VerifyTotals(ctx)
	if err != nil {
		logr.Fatal("verification failed", zap.Error(err))
	}
	logr.Info("verification complete",
		zap.Int("checked", verify.Checked),
		zap.Int("mismatches", len(verify.Mismatches)))

	if len(verify.Mismatches) > 0 {
		for _, m := range verify.Mismatches {
			logr.Error("cached total diverges from ledger",
				zap.String("student_id", m.StudentID),
				zap.Int("cached", m.Cached),
				zap.Int("expected", m.Expected))
		}
		os.Exit(1)
	}
}
