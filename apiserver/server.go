// Package apiserver wires the ledger's provided interfaces to HTTP, the
// local-client-facing surface the spec leaves unconstrained. It is a thin
// consumer of core.State and internal/publish.Pipeline, not part of the
// protocol itself.
package apiserver

import (
	"github.com/gorilla/mux"

	"ledgermesh/apiserver/controllers"
	"ledgermesh/apiserver/routes"
	"ledgermesh/apiserver/services"
	"ledgermesh/core"
	"ledgermesh/internal/publish"
)

// NewRouter builds the HTTP router local clients talk to: read-only state
// views plus the publish_event entry point.
func NewRouter(state *core.State, pipeline *publish.Pipeline) *mux.Router {
	svc := services.NewLedgerService(state, pipeline)
	ctrl := controllers.NewLedgerController(svc)
	r := mux.NewRouter()
	routes.Register(r, ctrl)
	return r
}
