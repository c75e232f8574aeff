package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"ledgermesh/apiserver/services"
	"ledgermesh/core"
)

// LedgerController provides the HTTP handlers local clients use to read
// projected state and submit signed events. It is a convenience surface
// over the ledger's provided interfaces, not part of the protocol itself.
type LedgerController struct {
	svc *services.LedgerService
}

func NewLedgerController(svc *services.LedgerService) *LedgerController {
	return &LedgerController{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (c *LedgerController) Balance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	writeJSON(w, http.StatusOK, map[string]string{"address": addr, "balance": c.svc.Balance(addr)})
}

func (c *LedgerController) Escrow(w http.ResponseWriter, r *http.Request) {
	e, ok := c.svc.Escrow(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *LedgerController) Contract(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Contract(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) Listing(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Listing(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) ListingsBySeller(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.svc.ListingsBySeller(mux.Vars(r)["seller"]))
}

func (c *LedgerController) Order(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Order(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) Bid(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Bid(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) Lease(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Lease(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) Reputation(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Reputation(mux.Vars(r)["subject"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (c *LedgerController) Proposal(w http.ResponseWriter, r *http.Request) {
	v, ok := c.svc.Proposal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// PublishEvent accepts a pre-signed event envelope and runs it through the
// publish pipeline.
func (c *LedgerController) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var env core.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hash, err := c.svc.PublishSigned(r.Context(), &env)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrStoreIO) || errors.Is(err, core.ErrStoreCorrupt) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"hash": hash})
}
