package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/sensor"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

const (
	errNoSensorsData = "no sensors data available"
	wsWriteTimeout   = 10 * time.Second
)

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	snap, updatedAt, ok := s.coordinator.Snapshot()
	if !ok {
		writeJSONError(w, errNoSensorsData, http.StatusNotFound)
		return
	}
	w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	writeJSON(w, snap)
}

func (s *Server) handleSensorsMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, sensor.Metrics())
}

type sensorResponse struct {
	types.SensorInfo
	types.SensorValue
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	info, ok := sensor.Lookup(types.MetricKey(r.PathValue("key")))
	if !ok {
		writeJSONError(w, "unknown sensor", http.StatusNotFound)
		return
	}
	snap, updatedAt, ok := s.coordinator.Snapshot()
	if !ok {
		writeJSONError(w, errNoSensorsData, http.StatusNotFound)
		return
	}
	value, ok := snap[info.Key]
	if !ok {
		writeJSONError(w, errNoSensorsData, http.StatusNotFound)
		return
	}
	writeJSON(w, sensorResponse{
		SensorInfo:  info,
		SensorValue: value,
		UpdatedAt:   updatedAt,
	})
}

// handleSensorsWS streams the current snapshot followed by every new one.
func (s *Server) handleSensorsWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error
		log.Ctx(ctx).WarnContext(ctx, "failed to upgrade websocket", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// subscribe before reading the current snapshot so nothing is missed
	updates, cancel := s.coordinator.Subscribe()
	defer cancel()

	// the client never sends anything useful, reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if snap, _, ok := s.coordinator.Snapshot(); ok {
		if err := writeSnapshot(conn, snap); err != nil {
			log.Ctx(ctx).DebugContext(ctx, "failed to write websocket snapshot", slog.Any("error", err))
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case <-closed:
			return
		case snap := <-updates:
			if err := writeSnapshot(conn, snap); err != nil {
				log.Ctx(ctx).DebugContext(ctx, "failed to write websocket snapshot", slog.Any("error", err))
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap types.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}
