package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"yolda/internal/domain"
)

// Response represents the API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StartWebServer runs the monitoring HTTP endpoint until ctx is canceled.
func (h *Handler) StartWebServer(ctx context.Context) {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/api/statistics", h.handleStatisticsAPI).Methods("GET")

	port := h.cfg.Port
	if !strings.Contains(port, ":") {
		port = ":" + port
	}

	server := &http.Server{
		Addr:         port,
		Handler:      r,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
	}

	h.logger.Info("Starting web server", zap.String("port", port))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Fatal("Failed to start web server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	h.logger.Info("Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		h.logger.Error("Server shutdown error", zap.Error(err))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "ok"
	code := http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	processing, reminders, expiries := h.scheduler.Stats()

	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            status,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"processing_timers": processing,
		"reminder_timers":   reminders,
		"expiry_timers":     expiries,
	})
}

func (h *Handler) handleStatisticsAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	stats, err := h.orderRepo.GetStatistics(r.Context())
	if err != nil {
		h.logger.Error("Failed to get statistics", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(Response{Success: false, Message: "failed to collect statistics"})
		return
	}

	total, drivers, passengers, err := h.userRepo.CountByRole(r.Context())
	if err == nil {
		stats.TotalUsers = total
		stats.DriverCount = drivers
		stats.PassengerCount = passengers
	}

	json.NewEncoder(w).Encode(Response{Success: true, Data: stats})
}

// NotifyOwnerStartup sends the owner a heads-up that the service is live,
// including what the recovery sweep found.
func (h *Handler) NotifyOwnerStartup(ctx context.Context) {
	if h.cfg.OwnerTelegramID == 0 {
		return
	}

	pending, err := h.orderRepo.ListOrdersByState(ctx, domain.StateInitiated)
	if err != nil {
		h.logger.Warn("Failed to count pending orders for startup notice", zap.Error(err))
	}

	text := "🟢 <b>Yo'lda bot ishga tushdi.</b>"
	if len(pending) > 0 {
		text += "\n🕐 Kutilayotgan buyurtmalar: " + strconv.Itoa(len(pending))
	}
	h.sendHTML(ctx, h.tg, h.cfg.OwnerTelegramID, text, nil)
}
