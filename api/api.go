// Package api is ledgerd's read-only query surface (SPEC_FULL.md §4.8),
// grounded on the teacher's api_public_blockchain.go Backend-facade shape:
// a thin adapter exposing chain reads to a transport, never mutating
// state. Here the transport is plain HTTP via julienschmidt/httprouter
// (already in the teacher's dependency set) instead of the teacher's
// JSON-RPC codec.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/types"
	"github.com/ledgerd/ledgerd/log"
)

var logger = log.NewModuleLogger(log.API)

// Backend is the narrow read surface the HTTP handlers need: the same
// Blockchain/Mempool methods the wire protocol and wallet collaborator
// already use.
type Backend interface {
	GetAccountBalance(pubkeyPEM string) blockchain.Balance
	GetTransactionHistory(pubkeyPEM string) []types.Transaction
	GetTransactionConfirmation(txID string) (blockchain.Confirmation, bool)
	MempoolTransactions() []types.Transaction
	ChainHeight() uint64
}

// NewRouter builds the read-only HTTP surface of SPEC_FULL.md §4.8:
// GET /balance/:pubkeyhash, GET /mempool, GET /chain/height,
// GET /tx/:id/status. It never mutates backend state.
func NewRouter(backend Backend) *httprouter.Router {
	r := httprouter.New()
	r.GET("/balance/:pubkeyhash", handleBalance(backend))
	r.GET("/mempool", handleMempool(backend))
	r.GET("/chain/height", handleChainHeight(backend))
	r.GET("/tx/:id/status", handleTxStatus(backend))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response failed", "err", err)
	}
}

func handleBalance(backend Backend) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		pubkey := ps.ByName("pubkeyhash")
		writeJSON(w, http.StatusOK, backend.GetAccountBalance(pubkey))
	}
}

func handleMempool(backend Backend) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		writeJSON(w, http.StatusOK, backend.MempoolTransactions())
	}
}

func handleChainHeight(backend Backend) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]uint64{"height": backend.ChainHeight()})
	}
}

func handleTxStatus(backend Backend) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id := ps.ByName("id")
		confirmation, ok := backend.GetTransactionConfirmation(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
			return
		}
		writeJSON(w, http.StatusOK, confirmation)
	}
}
