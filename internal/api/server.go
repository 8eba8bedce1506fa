// Copyright 2025 Certen Protocol
//

package api

import (
	"log"
	"net/http"
	"time"

	"github.com/passportxyz/scorer/internal/auth"
	"github.com/passportxyz/scorer/internal/config"
	"github.com/passportxyz/scorer/internal/database"
	"github.com/passportxyz/scorer/internal/humanpoints"
	"github.com/passportxyz/scorer/internal/orchestrator"
	"github.com/passportxyz/scorer/internal/weights"
)

// Server holds every dependency the HTTP handlers need — the same
// composition-root shape as the teacher's *Handlers structs in
// pkg/server, just one struct per route family instead of per
// subsystem.
type Server struct {
	db *database.Client

	orchestrator *orchestrator.Orchestrator
	weights      *weights.Loader
	humanPoints  *humanpoints.Processor

	ceramic     *database.CeramicRepository
	analytics   *database.AnalyticsRepository
	cgrants     *database.CgrantsRepository
	stakes      *database.StakeRepository
	addressList *database.AddressListRepository

	jwt     *auth.JWTVerifier
	apiKeys *auth.APIKeyVerifier

	ceramicCacheScorerID int64
	logger               *log.Logger
}

// NewServer builds a Server from its dependencies.
func NewServer(
	db *database.Client,
	orch *orchestrator.Orchestrator,
	weightsLoader *weights.Loader,
	humanPoints *humanpoints.Processor,
	ceramic *database.CeramicRepository,
	analytics *database.AnalyticsRepository,
	cgrants *database.CgrantsRepository,
	stakes *database.StakeRepository,
	addressList *database.AddressListRepository,
	jwt *auth.JWTVerifier,
	apiKeys *auth.APIKeyVerifier,
	cfg *config.Config,
) *Server {
	return &Server{
		db:                   db,
		orchestrator:         orch,
		weights:              weightsLoader,
		humanPoints:          humanPoints,
		ceramic:              ceramic,
		analytics:            analytics,
		cgrants:              cgrants,
		stakes:               stakes,
		addressList:          addressList,
		jwt:                  jwt,
		apiKeys:              apiKeys,
		ceramicCacheScorerID: int64(cfg.CeramicCacheScorerID),
		logger:               log.New(log.Writer(), "[API] ", log.LstdFlags),
	}
}

// Mux builds the route table exactly as the teacher's main.go registers
// routes on one http.NewServeMux() — method+pattern registration, no
// router library, matching spec.md §6's table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /v2/stamps/{scorer_id}/score/{address}", s.handleScoreV2)
	mux.HandleFunc("GET /internal/score/v2/{scorer_id}/{address}", s.handleInternalScoreV2)

	mux.HandleFunc("GET /internal/embed/weights", s.handleEmbedWeights)
	mux.HandleFunc("POST /internal/embed/stamps/{address}", s.handleEmbedStampsPost)
	mux.HandleFunc("GET /internal/embed/score/{scorer_id}/{address}", s.handleEmbedScore)
	mux.HandleFunc("GET /internal/embed/validate-api-key", s.handleValidateAPIKey)

	mux.HandleFunc("POST /ceramic-cache/stamps/bulk", s.handleCeramicBulk(http.StatusCreated))
	mux.HandleFunc("PATCH /ceramic-cache/stamps/bulk", s.handleCeramicBulk(http.StatusOK))
	mux.HandleFunc("DELETE /ceramic-cache/stamps/bulk", s.handleCeramicBulkDelete)
	mux.HandleFunc("GET /ceramic-cache/score/{address}", s.handleCeramicScore)

	mux.HandleFunc("GET /internal/cgrants/contributor_statistics", s.handleContributorStatistics)
	mux.HandleFunc("GET /internal/stake/gtc/{address}", s.handleStakeSnapshot)
	mux.HandleFunc("GET /internal/stake/legacy-gtc/{address}/{round_id}", s.handleLegacyStake)
	mux.HandleFunc("GET /internal/allow-list/{list}/{address}", s.handleAllowList)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`"OK"`))
}

// requestTimeout bounds every handler's own context. The database pool
// sets no connection-acquire timeout of its own, so time spent waiting for
// a pooled connection counts against this bound.
const requestTimeout = 30 * time.Second
