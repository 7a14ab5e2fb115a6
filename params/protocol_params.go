// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package params

import "time"

// Consensus and protocol constants, per spec.md §6.
const (
	InitialReward      float64 = 50
	HalvingInterval    uint64  = 210000
	InitialDifficulty  int     = 4
	TargetBlockTime            = 600 * time.Second
	MaxTxsPerBlock     int     = 2000
	RequiredConfirms   uint64  = 6
	MinTransaction     float64 = 1e-8
	MaxSupply          float64 = 21_000_000

	MempoolMaxTransactions  int           = 5000
	MempoolTransactionTTL   time.Duration = 3_600_000 * time.Millisecond

	// Genesis fields, bit-exact per spec.md §6.
	GenesisTimestampMs int64 = 1700000000000
	GenesisMiner             = "GENESIS"

	// Network timeouts, per spec.md §5.
	WalletConnectTimeout = 5 * time.Second
	ChainSyncTimeout     = 10 * time.Second
	MiningTickInterval   = 10 * time.Second

	// WalletListenSentinel is the listening-address string a wallet
	// connection advertises during its handshake so the peer's transport
	// can route it into the wallet-connections set instead of the peer
	// table (spec.md §3/§4.3).
	WalletListenSentinel = "localhost:0"
)

// RewardForHeight implements the halving schedule: INITIAL_REWARD / 2^floor(index/HALVING_INTERVAL).
func RewardForHeight(index uint64) float64 {
	halvings := index / HalvingInterval
	reward := InitialReward
	for i := uint64(0); i < halvings; i++ {
		reward /= 2
	}
	return reward
}
