package handler

import (
	"net/http"
	"runtime"
	"time"

	"cardmarket/internal/repository"
	"cardmarket/pkg/response"
)

// Counter reports how many entries some in-memory state holds.
type Counter interface {
	Len() int
}

// AdminHandler serves operational statistics.
type AdminHandler struct {
	store     repository.Store
	storeType string
	sessions  Counter
	setups    Counter
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. sessions and setups may be nil.
func NewAdminHandler(store repository.Store, storeType string, sessions, setups Counter) *AdminHandler {
	return &AdminHandler{
		store:     store,
		storeType: storeType,
		sessions:  sessions,
		setups:    setups,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"uptime_human":   time.Since(h.startTime).Round(time.Second).String(),
		"server_time":    time.Now().UTC().Format(time.RFC3339),
		"store_type":     h.storeType,
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(mem.Alloc) / 1024 / 1024,
		"sys_mb":        float64(mem.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(mem.HeapInuse) / 1024 / 1024,
		"num_gc":        mem.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if storeStats, err := h.store.Stats(r.Context()); err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	bot := map[string]interface{}{}
	if h.sessions != nil {
		bot["browse_sessions"] = h.sessions.Len()
	}
	if h.setups != nil {
		bot["setup_flows"] = h.setups.Len()
	}
	stats["bot"] = bot

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
