// Package dedup implements the Nullifier Registry / LIFO deduplication
// engine (C3), grounded line-for-line on
// original_source/rust-scorer/src/dedup/lifo.rs's lifo_dedup_attempt, with
// the retry wrapper modeled on the teacher's retry-loop idiom
// (pkg/anchor/event_watcher.go's RetryAttempts/RetryDelay).
package dedup

import (
	"context"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/credential"
	"github.com/passportxyz/scorer/internal/database"
)

// MaxRetries bounds the LIFO retry loop — spec.md §4.3 "Retry discipline".
const MaxRetries = 5

// StampWithWeight is a valid stamp annotated with its provider weight and
// whether it was deduped (spec.md §4.3 output).
type StampWithWeight struct {
	Provider   string
	Credential credential.ValidStamp
	Weight     decimal.Decimal
	WasDeduped bool
}

// ClashingStamp is a stamp that lost a nullifier contention to another
// address — spec.md §4.3 step 4.
type ClashingStamp struct {
	Nullifiers []string
	Credential credential.ValidStamp
	ExpiresAt  time.Time
}

// Result is the output of a LIFO deduplication run.
type Result struct {
	ValidStamps        []StampWithWeight
	ClashingStamps     map[string]ClashingStamp // provider -> clash
	HashLinksProcessed int
}

// Engine runs LIFO deduplication inside a caller-supplied transaction.
type Engine struct {
	repo   *database.NullifierRepository
	events *database.EventLogRepository
	logger *log.Logger
}

// New creates a dedup Engine.
func New(repo *database.NullifierRepository, events *database.EventLogRepository) *Engine {
	return &Engine{
		repo:   repo,
		events: events,
		logger: log.New(log.Writer(), "[Dedup] ", log.LstdFlags),
	}
}

// Run performs LIFO deduplication with retry on integrity errors, up to
// MaxRetries — spec.md §4.3 "Retry discipline".
func (e *Engine) Run(ctx context.Context, db database.DBTX, stamps []*credential.ValidStamp, address string, communityID int64, weights map[string]decimal.Decimal) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		// A failed statement aborts the enclosing transaction; the savepoint
		// lets a retryable failure be rolled back so the next attempt can run.
		if _, err := db.ExecContext(ctx, "SAVEPOINT lifo_dedup"); err != nil {
			return nil, apierr.Wrap(apierr.Database, "failed to create LIFO savepoint", err)
		}
		result, err := e.attempt(ctx, db, stamps, address, communityID, weights)
		if err == nil {
			if _, err := db.ExecContext(ctx, "RELEASE SAVEPOINT lifo_dedup"); err != nil {
				return nil, apierr.Wrap(apierr.Database, "failed to release LIFO savepoint", err)
			}
			if attempt > 0 {
				e.logger.Printf("LIFO dedup succeeded after %d retries for %s/%d", attempt, address, communityID)
			}
			return result, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		if _, rbErr := db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT lifo_dedup"); rbErr != nil {
			return nil, apierr.Wrap(apierr.Database, "failed to roll back LIFO savepoint", rbErr)
		}
		lastErr = err
		e.logger.Printf("LIFO dedup integrity error (attempt %d/%d): %v", attempt+1, MaxRetries, err)
	}
	return nil, apierr.Wrap(apierr.Database, "LIFO deduplication exhausted retries", lastErr)
}

// isRetryable classifies unique-violation, serialization-failure, and
// deadlock errors as retryable, per spec.md §4.3/§7.
func isRetryable(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Name() {
		case "unique_violation", "serialization_failure", "deadlock_detected":
			return true
		}
	}
	return false
}

func (e *Engine) attempt(ctx context.Context, db database.DBTX, stamps []*credential.ValidStamp, address string, communityID int64, weights map[string]decimal.Decimal) (*Result, error) {
	var allNullifiers []string
	for _, s := range stamps {
		allNullifiers = append(allNullifiers, s.Nullifiers...)
	}

	if len(allNullifiers) == 0 {
		var valid []StampWithWeight
		for _, s := range stamps {
			valid = append(valid, StampWithWeight{
				Provider:   s.Provider,
				Credential: *s,
				Weight:     weights[s.Provider],
				WasDeduped: false,
			})
		}
		return &Result{ValidStamps: valid, ClashingStamps: map[string]ClashingStamp{}}, nil
	}

	existing, err := e.repo.LoadLinks(ctx, db, communityID, allNullifiers)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load hash links", err)
	}

	now := time.Now()
	owned := map[string]bool{}
	clashing := map[string]bool{}
	expired := map[string]bool{}
	clashLinkByHash := map[string]database.HashScorerLink{}

	for _, link := range existing {
		switch {
		case link.Address == address:
			owned[link.Hash] = true
		case link.ExpiresAt.After(now):
			clashing[link.Hash] = true
			clashLinkByHash[link.Hash] = link
		default:
			expired[link.Hash] = true
		}
	}

	var valid []StampWithWeight
	clashingOut := map[string]ClashingStamp{}
	var creates, updates []database.LinkWrite

	for _, stamp := range stamps {
		var clashingNullifiers []string
		for _, n := range stamp.Nullifiers {
			if clashing[n] {
				clashingNullifiers = append(clashingNullifiers, n)
			}
		}

		if len(clashingNullifiers) == 0 {
			valid = append(valid, StampWithWeight{
				Provider:   stamp.Provider,
				Credential: *stamp,
				Weight:     weights[stamp.Provider],
				WasDeduped: false,
			})

			for _, n := range stamp.Nullifiers {
				switch {
				case owned[n]:
					updates = append(updates, database.LinkWrite{Hash: n, Address: address, CommunityID: communityID, ExpiresAt: stamp.ExpiresAt})
				case expired[n]:
					updates = append(updates, database.LinkWrite{Hash: n, Address: address, CommunityID: communityID, ExpiresAt: stamp.ExpiresAt})
				default:
					creates = append(creates, database.LinkWrite{Hash: n, Address: address, CommunityID: communityID, ExpiresAt: stamp.ExpiresAt})
				}
			}
			continue
		}

		firstClash := clashLinkByHash[clashingNullifiers[0]]
		clashingOut[stamp.Provider] = ClashingStamp{
			Nullifiers: stamp.Nullifiers,
			Credential: *stamp,
			ExpiresAt:  firstClash.ExpiresAt,
		}

		// Back-fill: nullifiers of a clashing stamp that are genuinely new
		// are created under the clashing owner's address/expiry so the
		// state remains internally consistent (spec.md §4.3 step 6).
		for _, n := range stamp.Nullifiers {
			if !clashing[n] && !owned[n] && !expired[n] {
				creates = append(creates, database.LinkWrite{Hash: n, Address: firstClash.Address, CommunityID: communityID, ExpiresAt: firstClash.ExpiresAt})
			}
		}
	}

	linksProcessed := len(creates) + len(updates)

	var nullifiersForAddress []string
	for _, s := range valid {
		nullifiersForAddress = append(nullifiersForAddress, s.Credential.Nullifiers...)
	}

	if err := e.repo.BulkUpsertLinks(ctx, db, creates, updates); err != nil {
		return nil, err
	}

	ok, err := e.repo.VerifyOwnership(ctx, db, address, communityID, nullifiersForAddress, len(nullifiersForAddress))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.New(apierr.Internal, "hash link verification failed - unexpected number of links")
	}

	for provider, clash := range clashingOut {
		if err := e.events.Append(ctx, db, database.EventActionLIFODedup, address, communityID, database.DedupEventData{
			Provider:   provider,
			Nullifiers: clash.Nullifiers,
		}); err != nil {
			return nil, apierr.Wrap(apierr.Database, "failed to append LDP event", err)
		}
	}

	return &Result{
		ValidStamps:        valid,
		ClashingStamps:      clashingOut,
		HashLinksProcessed: linksProcessed,
	}, nil
}
