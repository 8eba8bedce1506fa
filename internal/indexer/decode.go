// Copyright 2025 Certen Protocol
//

package indexer

import (
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// decodeSelfStake unpacks SelfStake's non-indexed fields (amount,
// unlockTime) and reads the indexed staker from topic[1].
func decodeSelfStake(l types.Log) (staker string, amount decimal.Decimal, unlockTime sql.NullTime, err error) {
	if len(l.Topics) < 2 {
		return "", decimal.Zero, sql.NullTime{}, fmt.Errorf("SelfStake log missing staker topic")
	}
	var out struct {
		Amount     *big.Int
		UnlockTime uint64
	}
	if err := stakingABI.UnpackIntoInterface(&out, "SelfStake", l.Data); err != nil {
		return "", decimal.Zero, sql.NullTime{}, fmt.Errorf("failed to unpack SelfStake: %w", err)
	}
	staker = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	amount = decimal.NewFromBigInt(out.Amount, 0)
	unlockTime = sql.NullTime{Time: time.Unix(int64(out.UnlockTime), 0).UTC(), Valid: true}
	return staker, amount, unlockTime, nil
}

// decodeCommunityStake unpacks CommunityStake's non-indexed fields and
// reads the indexed staker/stakee from topics[1]/[2].
func decodeCommunityStake(l types.Log) (staker, stakee string, amount decimal.Decimal, unlockTime sql.NullTime, err error) {
	if len(l.Topics) < 3 {
		return "", "", decimal.Zero, sql.NullTime{}, fmt.Errorf("CommunityStake log missing staker/stakee topics")
	}
	var out struct {
		Amount     *big.Int
		UnlockTime uint64
	}
	if err := stakingABI.UnpackIntoInterface(&out, "CommunityStake", l.Data); err != nil {
		return "", "", decimal.Zero, sql.NullTime{}, fmt.Errorf("failed to unpack CommunityStake: %w", err)
	}
	staker = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	stakee = common.BytesToAddress(l.Topics[2].Bytes()).Hex()
	amount = decimal.NewFromBigInt(out.Amount, 0)
	unlockTime = sql.NullTime{Time: time.Unix(int64(out.UnlockTime), 0).UTC(), Valid: true}
	return staker, stakee, amount, unlockTime, nil
}

// decodeAmountOnly unpacks the single non-indexed `amount` field shared by
// SelfStakeWithdrawn, Slash, and Release, reading the indexed staker from
// topic[1].
func decodeAmountOnly(l types.Log, eventName string) (staker string, amount decimal.Decimal, err error) {
	if len(l.Topics) < 2 {
		return "", decimal.Zero, fmt.Errorf("%s log missing staker topic", eventName)
	}
	var out struct {
		Amount *big.Int
	}
	if err := stakingABI.UnpackIntoInterface(&out, eventName, l.Data); err != nil {
		return "", decimal.Zero, fmt.Errorf("failed to unpack %s: %w", eventName, err)
	}
	staker = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	return staker, decimal.NewFromBigInt(out.Amount, 0), nil
}

// decodeCommunityAmountOnly unpacks CommunityStakeWithdrawn's amount field,
// reading the indexed staker/stakee from topics[1]/[2].
func decodeCommunityAmountOnly(l types.Log) (staker, stakee string, amount decimal.Decimal, err error) {
	if len(l.Topics) < 3 {
		return "", "", decimal.Zero, fmt.Errorf("CommunityStakeWithdrawn log missing staker/stakee topics")
	}
	var out struct {
		Amount *big.Int
	}
	if err := stakingABI.UnpackIntoInterface(&out, "CommunityStakeWithdrawn", l.Data); err != nil {
		return "", "", decimal.Zero, fmt.Errorf("failed to unpack CommunityStakeWithdrawn: %w", err)
	}
	staker = common.BytesToAddress(l.Topics[1].Bytes()).Hex()
	stakee = common.BytesToAddress(l.Topics[2].Bytes()).Hex()
	return staker, stakee, decimal.NewFromBigInt(out.Amount, 0), nil
}
