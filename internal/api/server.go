// Package api serves a running game over HTTP.
// GET endpoints are read-only views of the shop.
// POST endpoints play the game; /save additionally needs the admin bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/talgya/pawnbroker/internal/game"
	"github.com/talgya/pawnbroker/internal/mail"
	"github.com/talgya/pawnbroker/internal/negotiation"
	"github.com/talgya/pawnbroker/internal/shop"
	"github.com/talgya/pawnbroker/internal/story"
)

// Saver persists a snapshot of the game.
type Saver interface {
	SaveGame(st *game.State) error
}

// Server serves one game over HTTP. Game methods are not safe for concurrent
// use, so every handler holds mu while it touches the game.
type Server struct {
	Game     *game.Game
	DB       Saver // Optional; nil disables /save
	Port     int
	AdminKey string // Bearer token for /save. Empty = saving over HTTP disabled.

	mu sync.Mutex
}

// Handler builds the routed handler with CORS applied. The returned stop
// function releases the rate limiter.
func (s *Server) Handler() (http.Handler, func()) {
	customerLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/chains", s.handleChains)
	mux.HandleFunc("/api/v1/inventory", s.handleInventory)

	mux.HandleFunc("/api/v1/day/start", s.handleStartDay)
	mux.HandleFunc("/api/v1/day/end", s.handleEndDay)
	mux.HandleFunc("/api/v1/customer/next", RateLimitMiddleware(customerLimiter, s.handleNextCustomer))
	mux.HandleFunc("/api/v1/appraise", s.handleAppraise)
	mux.HandleFunc("/api/v1/instinct", s.handleInstinct)
	mux.HandleFunc("/api/v1/offer", s.handleOffer)
	mux.HandleFunc("/api/v1/leverage", s.handleLeverage)
	mux.HandleFunc("/api/v1/reject", s.handleReject)
	mux.HandleFunc("/api/v1/settle", s.handleSettle)
	mux.HandleFunc("/api/v1/conclude", s.handleConclude)

	mux.HandleFunc("/api/v1/save", s.adminOnly(s.handleSave))

	return corsMiddleware(mux), customerLimiter.Close
}

// Start serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	handler, stop := s.Handler()
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Autosave saves the game every interval until ctx ends. Failed saves are
// logged and retried on the next tick.
func (s *Server) Autosave(ctx context.Context, every time.Duration) error {
	if s.DB == nil || every <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.mu.Lock()
			st := s.Game.State()
			s.mu.Unlock()
			if err := s.DB.SaveGame(st); err != nil {
				slog.Error("autosave failed", "error", err)
				continue
			}
			slog.Debug("autosaved", "day", st.Stats.Day)
		}
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS adds a comma-separated list to the localhost dev servers.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				writeError(w, http.StatusForbidden, "admin endpoints disabled (no PAWNBROKER_ADMIN_KEY set)")
				return
			}
			if !s.checkBearerToken(r) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

type statusResponse struct {
	Day             int             `json:"day"`
	Phase           game.Phase      `json:"phase"`
	Cash            float64         `json:"cash"`
	ActionPoints    int             `json:"action_points"`
	MaxActionPoints int             `json:"max_action_points"`
	Reputation      shop.Reputation `json:"reputation"`
	CustomersToday  int             `json:"customers_today"`
	UnreadMail      int             `json:"unread_mail"`
	Customer        *shop.Customer  `json:"customer,omitempty"`
	Log             []game.Entry    `json:"log"`
}

const statusLogEntries = 10

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	st := s.Game.State()
	customer := s.Game.Customer()
	s.mu.Unlock()

	log := st.Log
	if len(log) > statusLogEntries {
		log = log[len(log)-statusLogEntries:]
	}
	writeJSON(w, statusResponse{
		Day:             st.Stats.Day,
		Phase:           st.Phase,
		Cash:            st.Stats.Cash,
		ActionPoints:    st.Stats.ActionPoints,
		MaxActionPoints: st.Stats.MaxActionPoints,
		Reputation:      st.Stats.Reputation,
		CustomersToday:  st.CustomersToday,
		UnreadMail:      st.Mail.Unread(),
		Customer:        customer,
		Log:             log,
	})
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	chains := s.Game.State().Chains
	s.mu.Unlock()
	if chains == nil {
		chains = []*story.ChainState{}
	}
	writeJSON(w, chains)
}

// handleInventory lists items, optionally filtered with ?status=ACTIVE.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	st := s.Game.State()
	s.mu.Unlock()

	items := st.Inventory
	if status := r.URL.Query().Get("status"); status != "" {
		items = st.ItemsByStatus(shop.ItemStatus(strings.ToUpper(status)))
	}
	if items == nil {
		items = []*shop.Item{}
	}
	writeJSON(w, items)
}

func (s *Server) handleStartDay(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	letters, err := s.Game.StartDay(r.Context())
	stats := s.Game.Stats()
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	if letters == nil {
		letters = []mail.Letter{}
	}
	writeJSON(w, map[string]any{"day": stats.Day, "letters": letters})
}

func (s *Server) handleEndDay(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	report, err := s.Game.EndDay(r.Context())
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleNextCustomer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	arrival, err := s.Game.NextCustomer(r.Context())
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, arrival)
}

func (s *Server) handleAppraise(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	res, err := s.Game.Appraise()
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, res)
}

type termsRequest struct {
	Principal float64 `json:"principal"`
	Rate      float64 `json:"rate"`
}

func decodeTerms(w http.ResponseWriter, r *http.Request) (termsRequest, bool) {
	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	if req.Principal <= 0 {
		writeError(w, http.StatusBadRequest, "principal must be positive")
		return req, false
	}
	if req.Rate < 0 || req.Rate > 1 {
		writeError(w, http.StatusBadRequest, "rate must be between 0 and 1")
		return req, false
	}
	return req, true
}

func (s *Server) handleInstinct(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req, ok := decodeTerms(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	feeling, err := s.Game.Instinct(req.Principal, req.Rate)
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, feeling)
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req, ok := decodeTerms(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out, err := s.Game.SubmitOffer(req.Principal, req.Rate)
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleLeverage(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		TraitID string `json:"trait_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.TraitID == "" {
		writeError(w, http.StatusBadRequest, "trait_id is required")
		return
	}
	s.mu.Lock()
	res, err := s.Game.UseTrait(req.TraitID)
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	res, err := s.Game.Reject()
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	out, err := s.Game.SettleRedemption()
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleConclude(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.mu.Lock()
	line, err := s.Game.Conclude()
	s.mu.Unlock()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, map[string]string{"dialogue": line})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "no save database configured")
		return
	}
	s.mu.Lock()
	st := s.Game.State()
	s.mu.Unlock()

	if err := s.DB.SaveGame(st); err != nil {
		slog.Error("save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	writeJSON(w, map[string]any{"status": "saved", "day": st.Stats.Day})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// gameErrorStatus maps game and negotiation errors to HTTP status codes.
func gameErrorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrNoCustomer), errors.Is(err, game.ErrNoVisit):
		return http.StatusNotFound
	case errors.Is(err, game.ErrGameOver):
		return http.StatusGone
	case errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, negotiation.ErrTraitNotRevealed),
		errors.Is(err, negotiation.ErrWrongTraitKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrVisitInProgress),
		errors.Is(err, game.ErrNotNegotiable),
		errors.Is(err, game.ErrNotRedemption),
		errors.Is(err, game.ErrNotConversation),
		errors.Is(err, negotiation.ErrSessionClosed),
		errors.Is(err, negotiation.ErrTraitUsed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeGameError(w http.ResponseWriter, err error) {
	code := gameErrorStatus(err)
	if code == http.StatusInternalServerError {
		slog.Error("game action failed", "error", err)
	}
	writeError(w, code, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
