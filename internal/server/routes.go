package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/careready/careready/internal/api/v1"
	"github.com/careready/careready/internal/api/ws"
	"github.com/careready/careready/internal/auth"
	"github.com/careready/careready/internal/inspection"
	"github.com/careready/careready/internal/store/postgres"
)

func registerAuthRoutes(api huma.API, store *postgres.Store, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, store, authSvc)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, orchestrator *inspection.Orchestrator) {
	v1.RegisterTenantRoutes(api, store)
	v1.RegisterSessionRoutes(api, store, orchestrator)
	v1.RegisterFindingRoutes(api, store)
	v1.RegisterCatalogRoutes(api, store)
	v1.RegisterProfileRoutes(api, store)
	v1.RegisterSnapshotRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/sessions/{sessionID}", hub.ServeSession)
	r.Get("/tenant", hub.ServeTenant)
}
