package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/JuggernautLabs/storyforge/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu                sync.RWMutex
	startTime         time.Time
	storyID           string
	mqttConnected     bool
	postgresConnected bool
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
}

// SetStoryID sets the story id for metrics labels.
func SetStoryID(id string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.storyID = id
}

// SetMQTTConnected records MQTT broker connectivity.
func SetMQTTConnected(up bool) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.mqttConnected = up
}

// SetPostgresConnected records event-store connectivity.
func SetPostgresConnected(up bool) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.postgresConnected = up
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	storyID := metricsState.storyID
	mqttConnected := metricsState.mqttConnected
	postgresConnected := metricsState.postgresConnected
	metricsState.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	eventsTotal := s.bus.TotalCount()
	wsClients := s.bus.SubscriberCount()

	s.mu.Lock()
	state := s.engine.State()
	s.mu.Unlock()

	gameOver := 0
	if state.IsOver {
		gameOver = 1
	}
	mqttConnectedVal := 0
	if mqttConnected {
		mqttConnectedVal = 1
	}
	postgresConnectedVal := 0
	if postgresConnected {
		postgresConnectedVal = 1
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`story="%s",instance="%s",version="%s"`, storyID, hostname, version.Version)

	writeMetric("storyforge_uptime_seconds", "gauge",
		"Number of seconds since the story server started", uptime, labels)

	writeMetric("storyforge_events_total", "counter",
		"Total number of events emitted since startup", eventsTotal, labels)

	writeMetric("storyforge_player_level", "gauge",
		"Current player level", state.Level, labels)

	writeMetric("storyforge_player_gold", "gauge",
		"Current player gold", state.Gold, labels)

	writeMetric("storyforge_player_experience", "gauge",
		"Current player experience points", state.Experience, labels)

	writeMetric("storyforge_nodes_total", "gauge",
		"Number of nodes in the story graph", state.NodeCount, labels)

	writeMetric("storyforge_edges_total", "gauge",
		"Number of choice edges in the story graph", state.EdgeCount, labels)

	writeMetric("storyforge_generation_errors_total", "counter",
		"Number of generation failures recorded this session", state.ErrorCount, labels)

	writeMetric("storyforge_game_over", "gauge",
		"Whether the session has ended (1) or not (0)", gameOver, labels)

	writeMetric("storyforge_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", mqttConnectedVal, labels)

	writeMetric("storyforge_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", postgresConnectedVal, labels)

	writeMetric("storyforge_ws_clients", "gauge",
		"Number of active WebSocket client connections", wsClients, labels)
}
