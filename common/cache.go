// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

package common

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/ledgerd/ledgerd/log"
)

var logger = log.NewModuleLogger(log.Common)

// BalanceCache is an LRU cache of derived account balances keyed by
// normalized public key, trading an eagerly-maintained incremental balance
// index for a bounded cache of the same. It exists alongside the
// incremental index the blockchain package keeps (see SPEC_FULL §4.1): the
// index is authoritative; GetAccountBalance consults this cache before the
// index map and fills it from the map on a miss, and the chain purges it
// whenever balances change.
type BalanceCache struct {
	cache *lru.Cache
}

// NewBalanceCache builds a bounded LRU cache with room for size entries.
func NewBalanceCache(size int) (*BalanceCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New(size)
	if err != nil {
		logger.Error("failed to allocate balance cache", "size", size, "err", err)
		return nil, err
	}
	return &BalanceCache{cache: c}, nil
}

// Get returns the cached value for key, if present.
func (b *BalanceCache) Get(key string) (interface{}, bool) {
	return b.cache.Get(key)
}

// Add inserts or overwrites the cached value for key.
func (b *BalanceCache) Add(key string, value interface{}) {
	b.cache.Add(key, value)
}

// Remove evicts key from the cache, if present.
func (b *BalanceCache) Remove(key string) {
	b.cache.Remove(key)
}

// Purge clears the entire cache, used after every appended block and on
// ReplaceChain.
func (b *BalanceCache) Purge() {
	b.cache.Purge()
}
