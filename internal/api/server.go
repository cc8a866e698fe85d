// Package api provides the HTTP API for watching the farm.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/mini-farm/internal/engine"
	"github.com/talgya/mini-farm/internal/llm"
	"github.com/talgya/mini-farm/internal/market"
	"github.com/talgya/mini-farm/internal/persistence"
)

const (
	defaultEventLimit = 50
	maxSpeed          = 1000
)

// Server serves the farm state over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // optional; enables POST /api/v1/save
	Addr     string
	AdminKey string      // Bearer token for POST endpoints. Empty = POST disabled.
	LLM      *llm.Client // optional; narrates the almanac
}

// Handler builds the API routes.
func (s *Server) Handler() http.Handler {
	adminLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/weather", s.handleWeather)
	mux.HandleFunc("GET /api/v1/farm", s.handleFarm)
	mux.HandleFunc("GET /api/v1/market", s.handleMarket)
	mux.HandleFunc("GET /api/v1/finance", s.handleFinance)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/almanac", s.handleAlmanac)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/speed", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleSpeed)))
	mux.HandleFunc("POST /api/v1/save", RateLimitMiddleware(adminLimiter, s.adminOnly(s.handleSave)))

	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
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

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no FARM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.Do(func(sim *engine.Simulation) {
		current := sim.Weather.Current()
		status = map[string]any{
			"name":         "mini-farm",
			"now":          sim.Now(),
			"sim_time":     engine.SimTime(sim.Now()),
			"cash":         sim.Wallet.Balance(),
			"weather":      current.Kind,
			"season":       current.Season,
			"credit_score": sim.Finance.CreditScore(),
			"plots":        len(sim.Crops.Plots()),
			"animals":      len(sim.Livestock.Animals()),
			"machines":     len(sim.Machinery.Machines()),
			"factories":    len(sim.Processing.Factories()),
		}
	})
	status["speed"] = s.Eng.Speed()
	status["paused"] = s.Eng.Paused()
	status["frame"] = s.Eng.Frame()
	writeJSON(w, status)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.Do(func(sim *engine.Simulation) {
		resp = map[string]any{
			"current":   sim.Weather.Current(),
			"remaining": sim.Weather.Remaining(),
			"forecast":  sim.Weather.Forecast(),
			"history":   sim.Weather.History(),
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleFarm(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.Do(func(sim *engine.Simulation) {
		resp = map[string]any{
			"plots":          sim.Crops.Plots(),
			"expected_yield": sim.Crops.ExpectedYield(),
			"animals":        sim.Livestock.Animals(),
			"herd":           sim.Livestock.Stats(),
			"machines":       sim.Machinery.Machines(),
			"fleet":          sim.Machinery.Stats(),
			"factories":      sim.Processing.Factories(),
		}
	})
	writeJSON(w, resp)
}

type priceView struct {
	market.PriceRecord
	Trend market.Trend `json:"trend"`
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	var prices []priceView
	var contracts []market.Contract
	s.Eng.Do(func(sim *engine.Simulation) {
		for _, p := range sim.Market.Prices() {
			prices = append(prices, priceView{PriceRecord: p, Trend: sim.Market.Trend(p.Commodity)})
		}
		contracts = sim.Market.Contracts()
	})
	writeJSON(w, map[string]any{"prices": prices, "contracts": contracts})
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	var resp map[string]any
	s.Eng.Do(func(sim *engine.Simulation) {
		tx := sim.Finance.Transactions()
		if len(tx) > defaultEventLimit {
			tx = tx[len(tx)-defaultEventLimit:]
		}
		resp = map[string]any{
			"summary":         sim.Finance.Summary(),
			"max_loan":        sim.Finance.MaxLoanAmount(),
			"loans":           sim.Finance.Loans(),
			"reports":         sim.Finance.Reports(),
			"transactions":    tx,
			"revenue_by_kind": sim.Finance.Revenues(),
			"expense_by_kind": sim.Finance.Expenses(),
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, engine.MaxEvents)
	}
	var events []engine.Event
	s.Eng.Do(func(sim *engine.Simulation) { events = sim.Recent(limit) })
	writeJSON(w, events)
}

func (s *Server) handleAlmanac(w http.ResponseWriter, r *http.Request) {
	var data llm.AlmanacData
	s.Eng.Do(func(sim *engine.Simulation) {
		current := sim.Weather.Current()
		summary := sim.Finance.Summary()
		data = llm.AlmanacData{
			SimTime:     engine.SimTime(sim.Now()),
			Season:      string(current.Season),
			Weather:     current.Name,
			Temperature: current.Temperature,
			Cash:        summary.Cash,
			NetProfit:   summary.NetProfit,
			Debt:        summary.Debt,
			CreditScore: summary.CreditScore,
			Plots:       len(sim.Crops.Plots()),
			Animals:     len(sim.Livestock.Animals()),
			Machines:    len(sim.Machinery.Machines()),
			Events:      make(map[string][]string),
		}
		for _, p := range sim.Market.Prices() {
			data.Prices = append(data.Prices, llm.PriceLine{
				Commodity: p.Commodity,
				Price:     p.Price,
				Base:      p.Base,
				Trend:     string(sim.Market.Trend(p.Commodity)),
			})
		}
		for _, e := range sim.Recent(defaultEventLimit) {
			data.Events[e.Category] = append(data.Events[e.Category], e.Description)
		}
	})
	writeJSON(w, llm.GenerateAlmanac(r.Context(), s.LLM, &data))
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > maxSpeed {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	writeJSON(w, map[string]any{"speed": s.Eng.Speed(), "paused": s.Eng.Paused()})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Slot int    `json:"slot"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Slot < 1 || req.Slot > persistence.MaxSlot {
		http.Error(w, "slot must be 1-3", http.StatusBadRequest)
		return
	}

	var snap engine.Snapshot
	var err error
	s.Eng.Do(func(sim *engine.Simulation) { snap, err = sim.Snapshot() })
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	id, err := s.DB.Save(req.Slot, req.Name, snap)
	if err != nil {
		slog.Error("save failed", "slot", req.Slot, "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"id": id, "slot": req.Slot, "sim_time": engine.SimTime(snap.Now)})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}
