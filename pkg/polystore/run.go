package polystore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails. When compensation is enabled the background replay loop
// runs for the lifetime of the server.
//
// On cancellation in-flight requests get a short grace period to finish
// before the listener closes.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := a.router()

	if a.comp != nil && a.config.ReplayInterval > 0 {
		stop := a.comp.StartReplayLoop(ctx, a.config.ReplayInterval, 100)
		defer stop()
	}

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Msg("starting polystore server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// router builds the full route table. Exposed for handler tests.
func (a *App) router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	// Health and status
	api.HandleFunc("/health", a.handleHealth).Methods("GET")
	api.HandleFunc("/status", a.handleStatus).Methods("GET")

	// Admin operations
	api.HandleFunc("/admin/backfill", a.handleBackfillAll).Methods("POST")
	api.HandleFunc("/admin/backfill/{type}", a.handleBackfillOne).Methods("POST")
	api.HandleFunc("/admin/consistency/{type}/{id}", a.handleConsistency).Methods("GET")
	api.HandleFunc("/admin/replay", a.handleReplay).Methods("POST")
	api.HandleFunc("/admin/compensation", a.handleCompensationBacklog).Methods("GET")
	api.HandleFunc("/admin/readonly", a.handleSetReadOnly).Methods("POST")

	// Account routes
	api.HandleFunc("/accounts", a.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", a.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}", a.handleUpdateAccount).Methods("PUT")
	api.HandleFunc("/accounts/{id}", a.handleDeleteAccount).Methods("DELETE")

	// Game session routes
	api.HandleFunc("/sessions", a.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", a.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", a.handleUpdateSession).Methods("PUT")
	api.HandleFunc("/sessions/{id}", a.handleDeleteSession).Methods("DELETE")

	// Score routes
	api.HandleFunc("/scores", a.handleCreateScore).Methods("POST")
	api.HandleFunc("/scores/{id}", a.handleGetScore).Methods("GET")
	api.HandleFunc("/scores/{id}", a.handleUpdateScore).Methods("PUT")
	api.HandleFunc("/scores/{id}", a.handleDeleteScore).Methods("DELETE")

	// Health check outside the /api prefix for load balancers
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}
