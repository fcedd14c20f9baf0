/*

This file is the HTTP surface: route setup, CORS and logging
middleware, and the request/response plumbing every handler shares.

*/

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/claim"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/intake"
	"github.com/liquidminer/incentived/internal/priceoracle"
	"github.com/liquidminer/incentived/internal/ratelimit"
	"github.com/liquidminer/incentived/internal/snapshot"
	"github.com/liquidminer/incentived/internal/subgraph"
)

// Server is the HTTP surface over every domain orchestrator and reader.
type Server struct {
	router *mux.Router
	port   string

	VI      *intake.Orchestrator
	AC      *claim.Orchestrator
	Holders *snapshot.Holders
	Roster  *snapshot.Roster
	PF      *subgraph.Fetcher
	Oracle  *priceoracle.Oracle

	PingLimiter *ratelimit.Limiter

	allVotes allVotesCache
}

// NewServer builds a Server with all its routes registered.
func NewServer(port string, vi *intake.Orchestrator, ac *claim.Orchestrator, holders *snapshot.Holders, roster *snapshot.Roster, pf *subgraph.Fetcher, oracle *priceoracle.Oracle) *Server {
	if port == "" {
		port = "3000"
	}

	s := &Server{
		router:      mux.NewRouter(),
		port:        port,
		VI:          vi,
		AC:          ac,
		Holders:     holders,
		Roster:      roster,
		PF:          pf,
		Oracle:      oracle,
		PingLimiter: ratelimit.New(config.RateLimitPerVoter, config.RateLimitWindow),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/updateVotes", s.handleUpdateVotes).Methods(http.MethodPost)
	s.router.HandleFunc("/claimAddress", s.handleClaimAddress).Methods(http.MethodPost)
	s.router.HandleFunc("/ping", s.handlePing).Methods(http.MethodPost)

	s.router.HandleFunc("/userVotes/{voter}", s.handleUserVotes).Methods(http.MethodGet)
	s.router.HandleFunc("/allVotes", s.handleAllVotes).Methods(http.MethodGet)
	s.router.HandleFunc("/allHolders", s.handleAllHolders).Methods(http.MethodGet)
	s.router.HandleFunc("/allAddresses", s.handleAllAddresses).Methods(http.MethodGet)
	s.router.HandleFunc("/allMiners", s.handleAllMiners).Methods(http.MethodGet)
	s.router.HandleFunc("/pools", s.handlePools).Methods(http.MethodGet)
	s.router.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	s.router.HandleFunc("/positions/{miner}", s.handlePositionsForMiner).Methods(http.MethodGet)
	s.router.HandleFunc("/weights", s.handleWeights).Methods(http.MethodGet)
	s.router.HandleFunc("/voteCooldown/{voter}", s.handleVoteCooldown).Methods(http.MethodGet)
	s.router.HandleFunc("/voteHistory/{voter}", s.handleVoteHistory).Methods(http.MethodGet)

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Handler exposes the underlying router, used by tests; Start wires the
// router into its own http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", s.port).Msg("Starting HTTP server.")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server.")
		return server.Shutdown(shutdownCtx)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remoteAddr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
