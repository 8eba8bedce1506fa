// Copyright 2025 Certen Protocol
//
// Package indexer implements the Chain Indexer (C7): one instance per
// chain, decoding Staking/PassportMint/HumanIdMint contract events and
// feeding the human-points and stake ledgers, grounded on spec.md §4.7 and
// on the ABI-parsing/topic-routing pattern from
// _examples/certenIO-certen-validator/pkg/anchor/event_watcher.go.
package indexer

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractKind distinguishes the three contract-type variants a chain may
// configure — spec.md §4.7.
type ContractKind string

const (
	ContractStaking      ContractKind = "Staking"
	ContractPassportMint ContractKind = "PassportMint"
	ContractHumanIDMint  ContractKind = "HumanIdMint"
)

// stakingEventsABI carries the six Staking events this indexer decodes —
// spec.md §4.7 "Staking".
const stakingEventsABI = `[
	{"anonymous":false,"name":"SelfStake","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"},
		{"indexed":false,"name":"unlockTime","type":"uint64"}]},
	{"anonymous":false,"name":"CommunityStake","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":true,"name":"stakee","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"},
		{"indexed":false,"name":"unlockTime","type":"uint64"}]},
	{"anonymous":false,"name":"SelfStakeWithdrawn","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"}]},
	{"anonymous":false,"name":"CommunityStakeWithdrawn","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":true,"name":"stakee","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"}]},
	{"anonymous":false,"name":"Slash","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"}]},
	{"anonymous":false,"name":"Release","type":"event","inputs":[
		{"indexed":true,"name":"staker","type":"address"},
		{"indexed":false,"name":"amount","type":"uint192"}]}
]`

// easAttestedABI carries the EAS `Attested` event used by PassportMint
// contracts — spec.md §4.7 "PassportMint".
const easAttestedABI = `[
	{"anonymous":false,"name":"Attested","type":"event","inputs":[
		{"indexed":true,"name":"recipient","type":"address"},
		{"indexed":true,"name":"attester","type":"address"},
		{"indexed":false,"name":"uid","type":"bytes32"},
		{"indexed":true,"name":"schemaUID","type":"bytes32"}]}
]`

// erc721TransferABI carries the ERC-721 `Transfer` event used by
// HumanIdMint contracts — spec.md §4.7 "HumanIdMint".
const erc721TransferABI = `[
	{"anonymous":false,"name":"Transfer","type":"event","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]}
]`

var (
	stakingABI abi.ABI
	easABI     abi.ABI
	erc721ABI  abi.ABI

	topicSelfStake               common.Hash
	topicCommunityStake          common.Hash
	topicSelfStakeWithdrawn      common.Hash
	topicCommunityStakeWithdrawn common.Hash
	topicSlash                   common.Hash
	topicRelease                 common.Hash
	topicAttested                common.Hash
	topicTransfer                common.Hash
)

func init() {
	var err error
	stakingABI, err = abi.JSON(strings.NewReader(stakingEventsABI))
	if err != nil {
		panic("indexer: invalid staking events ABI: " + err.Error())
	}
	easABI, err = abi.JSON(strings.NewReader(easAttestedABI))
	if err != nil {
		panic("indexer: invalid EAS Attested ABI: " + err.Error())
	}
	erc721ABI, err = abi.JSON(strings.NewReader(erc721TransferABI))
	if err != nil {
		panic("indexer: invalid ERC-721 Transfer ABI: " + err.Error())
	}

	topicSelfStake = crypto.Keccak256Hash([]byte("SelfStake(address,uint192,uint64)"))
	topicCommunityStake = crypto.Keccak256Hash([]byte("CommunityStake(address,address,uint192,uint64)"))
	topicSelfStakeWithdrawn = crypto.Keccak256Hash([]byte("SelfStakeWithdrawn(address,uint192)"))
	topicCommunityStakeWithdrawn = crypto.Keccak256Hash([]byte("CommunityStakeWithdrawn(address,address,uint192)"))
	topicSlash = crypto.Keccak256Hash([]byte("Slash(address,uint192)"))
	topicRelease = crypto.Keccak256Hash([]byte("Release(address,uint192)"))
	topicAttested = crypto.Keccak256Hash([]byte("Attested(address,address,bytes32,bytes32)"))
	topicTransfer = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
}
