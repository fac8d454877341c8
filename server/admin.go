package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"macroprox/logger"
)

// Router 组装 HTTP 路由：/ws 接入、健康检查、监控与管理接口
func (h *Host) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", h.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/metrics", h.HandleMetrics)
		r.Get("/admin/config", h.HandleAdminConfig)
		r.Post("/admin/config", h.HandleAdminConfig)
		r.Get("/admin/players", h.HandlePlayers)
	})
	return r
}

// ListenAndServe 监听 addr 并阻塞直到 ctx 取消；绑定失败立即返回错误
func (h *Host) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Infof("listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// adminConfig 可热更新的配置
type adminConfig struct {
	BroadcastIntervalMs *int64 `json:"broadcastIntervalMs,omitempty"`
}

// HandleAdminConfig 提供广播间隔的读取与更新
// GET /admin/config  返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (h *Host) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ms := h.Interval().Milliseconds()
		writeJSON(w, http.StatusOK, adminConfig{BroadcastIntervalMs: &ms})
	case http.MethodPost:
		var body adminConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.BroadcastIntervalMs != nil {
			if *body.BroadcastIntervalMs <= 0 {
				http.Error(w, "broadcastIntervalMs must be positive", http.StatusBadRequest)
				return
			}
			h.SetInterval(time.Duration(*body.BroadcastIntervalMs) * time.Millisecond)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		logger.Log.Infof("config updated: interval=%s", h.Interval())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (h *Host) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"interval_ms": h.Interval().Milliseconds(),
		"metrics":     h.metrics.Snapshot(),
	})
}

type playerView struct {
	ID   uint8   `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// HandlePlayers 当前玩家列表，按 ID 排序
// GET /admin/players
func (h *Host) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	players := h.st.Players()
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	out := make([]playerView, 0, len(players))
	for _, p := range players {
		out = append(out, playerView{ID: p.ID, Name: p.Name, X: p.Position.X, Y: p.Position.Y})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
