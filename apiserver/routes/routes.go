package routes

import (
	"github.com/gorilla/mux"

	"ledgermesh/apiserver/controllers"
	"ledgermesh/apiserver/middleware"
)

// Register wires the ledger state-view and publish endpoints onto r.
func Register(r *mux.Router, lc *controllers.LedgerController) {
	r.Use(middleware.Logger)
	r.HandleFunc("/api/balances/{address}", lc.Balance).Methods("GET")
	r.HandleFunc("/api/escrows/{id}", lc.Escrow).Methods("GET")
	r.HandleFunc("/api/contracts/{id}", lc.Contract).Methods("GET")
	r.HandleFunc("/api/listings/{id}", lc.Listing).Methods("GET")
	r.HandleFunc("/api/listings/seller/{seller}", lc.ListingsBySeller).Methods("GET")
	r.HandleFunc("/api/orders/{id}", lc.Order).Methods("GET")
	r.HandleFunc("/api/bids/{id}", lc.Bid).Methods("GET")
	r.HandleFunc("/api/leases/{id}", lc.Lease).Methods("GET")
	r.HandleFunc("/api/reputation/{subject}", lc.Reputation).Methods("GET")
	r.HandleFunc("/api/proposals/{id}", lc.Proposal).Methods("GET")
	r.HandleFunc("/api/events", lc.PublishEvent).Methods("POST")
}
