// Copyright 2025 Certen Protocol
//

package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/config"
	"github.com/passportxyz/scorer/internal/database"
)

// maxWindowBlocks bounds a single eth_getLogs backfill request — spec.md
// §4.7 "windows of at most 1000 blocks".
const maxWindowBlocks = 1000

// stallCheckInterval and reindexCheckInterval drive the two watchdog
// subtasks — spec.md §4.7.
const (
	stallCheckInterval    = 15 * time.Minute
	reindexCheckInterval  = 60 * time.Second
)

var errStalled = errors.New("no events logged")
var errReindexRequested = errors.New("reindex requested")

// Contract is one configured contract this indexer watches.
type Contract struct {
	Kind       ContractKind
	Address    common.Address
	StartBlock uint64
	SchemaUID  common.Hash // PassportMint only
}

// Indexer owns one RPC connection and zero or more contracts for a single
// chain — spec.md §4.7 preamble.
type Indexer struct {
	chainName string
	chainID   int64
	rpcURL    string
	contracts []Contract

	stakeRepo       *database.StakeRepository
	humanPointsRepo *database.HumanPointsRepository

	logger *log.Logger

	client   *ethclient.Client
	clientMu sync.RWMutex
}

// New creates an Indexer for one chain from its ChainConfig.
func New(chain config.ChainConfig, stakeRepo *database.StakeRepository, humanPointsRepo *database.HumanPointsRepository) *Indexer {
	var contracts []Contract
	if chain.StakingContract != "" {
		contracts = append(contracts, Contract{
			Kind:       ContractStaking,
			Address:    common.HexToAddress(chain.StakingContract),
			StartBlock: chain.StartBlock,
		})
	}
	if chain.EASContract != "" {
		contracts = append(contracts, Contract{
			Kind:       ContractPassportMint,
			Address:    common.HexToAddress(chain.EASContract),
			StartBlock: chain.StartBlock,
			SchemaUID:  common.HexToHash(chain.EASSchemaUID),
		})
	}
	if chain.HumanIDContract != "" {
		contracts = append(contracts, Contract{
			Kind:       ContractHumanIDMint,
			Address:    common.HexToAddress(chain.HumanIDContract),
			StartBlock: chain.StartBlock,
		})
	}

	return &Indexer{
		chainName:       chain.Name,
		chainID:         chain.ChainID,
		rpcURL:          chain.RPCURL,
		contracts:       contracts,
		stakeRepo:       stakeRepo,
		humanPointsRepo: humanPointsRepo,
		logger:          log.New(log.Writer(), fmt.Sprintf("[Indexer:%s] ", chain.Name), log.LstdFlags),
	}
}

// Run runs the outer restart loop forever until ctx is canceled — spec.md
// §4.7 "Outer loop": restart on any subtask error, reconnecting the RPC
// client on each restart; failed connects are retried with exponential
// backoff, which resets after a successful connect.
func (ix *Indexer) Run(ctx context.Context, db *database.Client) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := ix.connect(ctx); err != nil {
			ix.logger.Printf("RPC connect failed, backing off: %v", err)
			if err := ix.waitBackoff(ctx, b); err != nil {
				return err
			}
			continue
		}
		b.Reset()

		err := ix.runOnce(ctx, db)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ix.logger.Printf("outer loop restarting: %v", err)
	}
}

// waitBackoff sleeps for the next interval of b, the exponential-backoff
// schedule spec.md §4.7 describes for RPC connect failures (base 2s, capped
// ~1m, with jitter); Run keeps b across consecutive failures.
func (ix *Indexer) waitBackoff(ctx context.Context, b *backoff.ExponentialBackOff) error {
	select {
	case <-time.After(b.NextBackOff()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ix *Indexer) connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, ix.rpcURL)
	if err != nil {
		return err
	}
	ix.clientMu.Lock()
	ix.client = client
	ix.clientMu.Unlock()
	return nil
}

func (ix *Indexer) rpc() *ethclient.Client {
	ix.clientMu.RLock()
	defer ix.clientMu.RUnlock()
	return ix.client
}

// runOnce runs the three subtasks concurrently and returns on the first
// error — spec.md §4.7 "run the three subtasks concurrently; restart the
// loop on any of them returning an error".
func (ix *Indexer) runOnce(ctx context.Context, db *database.Client) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() { defer wg.Done(); errCh <- ix.backfillAndSubscribe(subCtx, db) }()
	go func() { defer wg.Done(); errCh <- ix.stallWatchdog(subCtx, db) }()
	go func() { defer wg.Done(); errCh <- ix.reindexSignal(subCtx, db) }()

	err := <-errCh
	cancel()
	wg.Wait()
	return err
}

// resolveStartBlock implements spec.md §4.7's "query_start_block
// resolution" order: explicit reindex request (ack'd), else
// last_logged_block+1, else the contract's configured start block — here
// applied chain-wide since all contracts on a chain share one cursor.
func (ix *Indexer) resolveStartBlock(ctx context.Context, db *database.Client) (uint64, error) {
	state, err := ix.stakeRepo.GetOrInitChainState(ctx, db, ix.chainName)
	if err != nil {
		return 0, err
	}

	requested, err := ix.stakeRepo.ConsumeReindexRequest(ctx, db, ix.chainName)
	if err != nil {
		return 0, err
	}
	if requested > 0 {
		return requested, nil
	}
	if state.LastCheckedBlock > 0 {
		return state.LastCheckedBlock + 1, nil
	}

	min := ^uint64(0)
	for _, c := range ix.contracts {
		if c.StartBlock < min {
			min = c.StartBlock
		}
	}
	if min == ^uint64(0) {
		return 0, nil
	}
	return min, nil
}

// backfillAndSubscribe implements spec.md §4.7's "Backfill + subscribe"
// subtask.
func (ix *Indexer) backfillAndSubscribe(ctx context.Context, db *database.Client) error {
	client := ix.rpc()

	start, err := ix.resolveStartBlock(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to resolve start block: %w", err)
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain head: %w", err)
	}

	query := start
	for query < head-1 {
		end := query + maxWindowBlocks - 1
		if end > head {
			end = head
		}

		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(query),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: ix.addresses(),
		})
		if err != nil {
			return fmt.Errorf("failed to fetch logs for window [%d,%d]: %w", query, end, err)
		}

		processed := 0
		for _, l := range logs {
			if err := ix.routeLog(ctx, db, l); err != nil {
				return fmt.Errorf("failed to route log: %w", err)
			}
			processed++
		}

		if err := ix.stakeRepo.AdvanceLastCheckedBlock(ctx, db, ix.chainName, end, processed); err != nil {
			return fmt.Errorf("failed to advance chain cursor: %w", err)
		}

		query = end + 1
	}

	return ix.subscribe(ctx, db, client, query)
}

func (ix *Indexer) subscribe(ctx context.Context, db *database.Client, client *ethclient.Client, fromBlock uint64) error {
	logsCh := make(chan types.Log, 256)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: ix.addresses(),
	}, logsCh)
	if err != nil {
		return fmt.Errorf("failed to open log subscription: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription error: %w", err)
		case l := <-logsCh:
			if err := ix.routeLog(ctx, db, l); err != nil {
				return fmt.Errorf("failed to route log: %w", err)
			}
			if err := ix.stakeRepo.AdvanceLastCheckedBlock(ctx, db, ix.chainName, l.BlockNumber, 1); err != nil {
				return fmt.Errorf("failed to advance chain cursor: %w", err)
			}
		}
	}
}

func (ix *Indexer) addresses() []common.Address {
	out := make([]common.Address, len(ix.contracts))
	for i, c := range ix.contracts {
		out[i] = c.Address
	}
	return out
}

// stallWatchdog implements spec.md §4.7's "Stall watchdog" subtask.
func (ix *Indexer) stallWatchdog(ctx context.Context, db *database.Client) error {
	ticker := time.NewTicker(stallCheckInterval)
	defer ticker.Stop()

	lastCount := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state, err := ix.stakeRepo.GetOrInitChainState(ctx, db, ix.chainName)
			if err != nil {
				return fmt.Errorf("stall watchdog failed to read chain state: %w", err)
			}
			if lastCount >= 0 && state.TotalEventsCounter == lastCount {
				return errStalled
			}
			lastCount = state.TotalEventsCounter
		}
	}
}

// reindexSignal implements spec.md §4.7's "Reindex signal" subtask.
func (ix *Indexer) reindexSignal(ctx context.Context, db *database.Client) error {
	ticker := time.NewTicker(reindexCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state, err := ix.stakeRepo.GetOrInitChainState(ctx, db, ix.chainName)
			if err != nil {
				return fmt.Errorf("reindex signal failed to read chain state: %w", err)
			}
			if state.RequestedStartBlock > 0 {
				return errReindexRequested
			}
		}
	}
}

// routeLog implements spec.md §4.7's "Log router": find the owning
// contract, drop logs below its start_block, and dispatch by contract
// type.
func (ix *Indexer) routeLog(ctx context.Context, db *database.Client, l types.Log) error {
	var owner *Contract
	for i := range ix.contracts {
		if ix.contracts[i].Address == l.Address {
			owner = &ix.contracts[i]
			break
		}
	}
	if owner == nil {
		return fmt.Errorf("log from unconfigured address %s", l.Address.Hex())
	}
	if l.BlockNumber < owner.StartBlock {
		return nil
	}

	switch owner.Kind {
	case ContractStaking:
		return ix.handleStaking(ctx, db, l)
	case ContractPassportMint:
		return ix.handlePassportMint(ctx, db, l, *owner)
	case ContractHumanIDMint:
		return ix.handleHumanIDMint(ctx, db, l)
	default:
		return fmt.Errorf("unknown contract kind %q", owner.Kind)
	}
}

// handleStaking decodes one of the six Staking events and writes both the
// stake-event log row and the running-sum upsert in one transaction —
// spec.md §4.7 "Staking".
func (ix *Indexer) handleStaking(ctx context.Context, db *database.Client, l types.Log) error {
	if len(l.Topics) == 0 {
		return fmt.Errorf("staking log has no topics")
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin staking tx: %w", err)
	}
	defer tx.Rollback()

	switch l.Topics[0] {
	case topicSelfStake:
		staker, amount, unlock, err := decodeSelfStake(l)
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "SST", staker, staker, amount, l, sql.NullTime{}, unlock); err != nil {
			return err
		}
	case topicCommunityStake:
		staker, stakee, amount, unlock, err := decodeCommunityStake(l)
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "CST", staker, stakee, amount, l, sql.NullTime{}, unlock); err != nil {
			return err
		}
	case topicSelfStakeWithdrawn:
		staker, amount, err := decodeAmountOnly(l, "SelfStakeWithdrawn")
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "SSW", staker, staker, amount.Neg(), l, sql.NullTime{}, sql.NullTime{}); err != nil {
			return err
		}
	case topicCommunityStakeWithdrawn:
		staker, stakee, amount, err := decodeCommunityAmountOnly(l)
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "CSW", staker, stakee, amount.Neg(), l, sql.NullTime{}, sql.NullTime{}); err != nil {
			return err
		}
	case topicSlash:
		staker, amount, err := decodeAmountOnly(l, "Slash")
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "SLA", staker, staker, amount.Neg(), l, sql.NullTime{}, sql.NullTime{}); err != nil {
			return err
		}
	case topicRelease:
		staker, amount, err := decodeAmountOnly(l, "Release")
		if err != nil {
			return err
		}
		if err := ix.writeStakeEvent(ctx, tx, "REL", staker, staker, amount, l, sql.NullTime{}, sql.NullTime{}); err != nil {
			return err
		}
	default:
		return nil
	}

	return tx.Commit()
}

func (ix *Indexer) writeStakeEvent(ctx context.Context, tx *database.Tx, eventType, staker, stakee string, amount decimal.Decimal, l types.Log, lockTime, unlockTime sql.NullTime) error {
	if err := ix.stakeRepo.InsertEvent(ctx, tx, database.StakeEvent{
		Chain:       ix.chainName,
		EventType:   eventType,
		Staker:      staker,
		Stakee:      stakee,
		Amount:      amount,
		BlockNumber: int64(l.BlockNumber),
		TxHash:      l.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("failed to insert stake event: %w", err)
	}
	if err := ix.stakeRepo.ApplyDelta(ctx, tx, ix.chainName, staker, stakee, amount, lockTime, unlockTime, int64(l.BlockNumber)); err != nil {
		return fmt.Errorf("failed to apply stake delta: %w", err)
	}
	return nil
}

// handlePassportMint decodes an EAS Attested event, skipping unless its
// schema matches the contract's configured schema — spec.md §4.7
// "PassportMint".
func (ix *Indexer) handlePassportMint(ctx context.Context, db *database.Client, l types.Log, owner Contract) error {
	if l.Topics[0] != topicAttested {
		return nil
	}
	if len(l.Topics) < 4 {
		return fmt.Errorf("Attested log missing indexed topics")
	}
	recipient := common.BytesToAddress(l.Topics[1].Bytes())
	schemaUID := l.Topics[3]
	if schemaUID != owner.SchemaUID {
		return nil
	}

	return ix.humanPointsRepo.InsertEntry(ctx, db, database.HumanPointsEntry{
		Address: recipient.Hex(),
		Action:  "PMT",
		ChainID: sql.NullInt64{Int64: ix.chainID, Valid: true},
		TxHash:  sql.NullString{String: l.TxHash.Hex(), Valid: true},
	})
}

// handleHumanIDMint decodes an ERC-721 Transfer event, minting iff
// from=zero — spec.md §4.7 "HumanIdMint".
func (ix *Indexer) handleHumanIDMint(ctx context.Context, db *database.Client, l types.Log) error {
	if l.Topics[0] != topicTransfer {
		return nil
	}
	if len(l.Topics) < 3 {
		return fmt.Errorf("Transfer log missing indexed topics")
	}
	from := common.BytesToAddress(l.Topics[1].Bytes())
	to := common.BytesToAddress(l.Topics[2].Bytes())
	if from != (common.Address{}) {
		return nil
	}

	return ix.humanPointsRepo.InsertEntry(ctx, db, database.HumanPointsEntry{
		Address: to.Hex(),
		Action:  "HIM",
		ChainID: sql.NullInt64{Int64: ix.chainID, Valid: true},
		TxHash:  sql.NullString{String: l.TxHash.Hex(), Valid: true},
	})
}
