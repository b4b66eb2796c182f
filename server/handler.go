package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alimasry/go-collab-list/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type collectionSummary struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type collectionSnapshot struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Items   []any  `json:"items"`
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()

	// Serve static files.
	mux.Handle("/", http.FileServer(http.Dir(hub.cfg.StaticDir)))

	mux.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint. ?codec=msgpack switches to binary frames.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		codec, err := CodecFor(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade", zap.Error(err))
			return
		}
		client := newClient(hub, conn, codec)
		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /api/collections", func(w http.ResponseWriter, r *http.Request) {
		infos, err := hub.store.List(r.Context())
		if err != nil {
			hub.logger.Error("list collections", zap.Error(err))
			http.Error(w, "failed to list collections", http.StatusInternalServerError)
			return
		}
		out := make([]collectionSummary, 0, len(infos))
		for _, info := range infos {
			out = append(out, collectionSummary{
				ID:        info.ID,
				Version:   info.Version,
				Count:     len(info.Items),
				UpdatedAt: info.UpdatedAt,
			})
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("GET /api/collections/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		state, err := hub.Snapshot(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		if err != nil {
			hub.logger.Error("snapshot", zap.String("collection", id), zap.Error(err))
			http.Error(w, "failed to load collection", http.StatusInternalServerError)
			return
		}
		writeJSON(w, collectionSnapshot{ID: id, Version: state.Version(), Items: state.Items()})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
