// Copyright 2019 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

package params

import "strings"

// Role identifies which of the three CLI roles (§6) a running process
// plays: a plain relay, a miner, or a wallet attached to a node.
type Role int

const (
	RoleRelay Role = iota
	RoleMiner
	RoleWallet
	RoleUnknown
)

func ConvertStringToRole(role string) Role {
	switch strings.ToLower(role) {
	case "relay", "start-node":
		return RoleRelay
	case "miner", "mining-node":
		return RoleMiner
	case "wallet", "connect-wallet":
		return RoleWallet
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleRelay:
		return "relay"
	case RoleMiner:
		return "miner"
	case RoleWallet:
		return "wallet"
	default:
		return "unknown"
	}
}
