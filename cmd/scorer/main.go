// Command scorer runs the credential-scoring API and the per-chain
// indexers, wiring C1-C8 per SPEC_FULL.md. Startup/shutdown sequencing
// (flag-free, env-var config, signal-driven graceful shutdown, goroutines
// canceled via one root context) follows the teacher's main.go.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/passportxyz/scorer/internal/api"
	"github.com/passportxyz/scorer/internal/auth"
	"github.com/passportxyz/scorer/internal/config"
	"github.com/passportxyz/scorer/internal/credential"
	"github.com/passportxyz/scorer/internal/database"
	"github.com/passportxyz/scorer/internal/dedup"
	"github.com/passportxyz/scorer/internal/humanpoints"
	"github.com/passportxyz/scorer/internal/indexer"
	"github.com/passportxyz/scorer/internal/orchestrator"
	"github.com/passportxyz/scorer/internal/weights"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := database.NewClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.MigrateUp(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("failed to run migrations: %v", err)
	}
	migrateCancel()

	communities := database.NewCommunityRepository()
	passports := database.NewPassportRepository()
	ceramic := database.NewCeramicRepository()
	stamps := database.NewStampRepository()
	scores := database.NewScoreRepository()
	eventLog := database.NewEventLogRepository()
	nullifiers := database.NewNullifierRepository()
	scorerConfigs := database.NewScorerConfigRepository()
	humanPointsRepo := database.NewHumanPointsRepository()
	analytics := database.NewAnalyticsRepository()
	cgrants := database.NewCgrantsRepository()
	stakeRepo := database.NewStakeRepository()
	addressList := database.NewAddressListRepository()
	apiKeyRepo := database.NewAPIKeyRepository()

	weightsLoader := weights.New(scorerConfigs)
	dedupEngine := dedup.New(nullifiers, eventLog)
	humanPointsProcessor := humanpoints.New(humanPointsRepo)

	// Credential-verifier capability is an external collaborator per
	// spec.md §1; no proof verification is wired in-process.
	var proofVerifier credential.ProofVerifier

	humanPointsConfig := humanpoints.Config{
		ProgramEnabled: cfg.HumanPointsEnabled,
		WriteEnabled:   cfg.HumanPointsWriteEnabled,
		StartTimestamp: cfg.HumanPointsStartTimestamp,
	}

	orch := orchestrator.New(
		db, communities, passports, ceramic, stamps, scores, eventLog,
		trustedIssuers(), proofVerifier, weightsLoader, dedupEngine,
		humanPointsProcessor, humanPointsConfig, cfg.HumanPointsMTAEnabled,
	)

	jwtVerifier := auth.NewJWTVerifier(cfg.JWTSecret)
	apiKeyVerifier := auth.NewAPIKeyVerifier(apiKeyRepo, db, cfg.DemoAPIKey)

	server := api.NewServer(
		db, orch, weightsLoader, humanPointsProcessor,
		ceramic, analytics, cgrants, stakeRepo, addressList,
		jwtVerifier, apiKeyVerifier, cfg,
	)

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: server.Mux(),
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, chain := range cfg.Chains {
		ix := indexer.New(chain, stakeRepo, humanPointsRepo)
		wg.Add(1)
		go func(chainName string) {
			defer wg.Done()
			if err := ix.Run(ctx, db); err != nil && ctx.Err() == nil {
				log.Printf("indexer for chain %s stopped unexpectedly: %v", chainName, err)
			}
		}(chain.Name)
	}

	go func() {
		log.Printf("scoring API listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("stopped")
}

// trustedIssuers lists the DID-key issuers C1 accepts for stamp
// credentials. Populated from the scoring environment's known verifier
// set; no teacher equivalent, so the set is a single fixed list rather
// than a discovered/registry-backed one.
func trustedIssuers() []string {
	raw := os.Getenv("TRUSTED_ISSUERS")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
