// Package web provides a real-time tracking dashboard.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/mwestergaard/go-headlock/internal/log"
	"github.com/mwestergaard/go-headlock/pkg/hub"
	"github.com/mwestergaard/go-headlock/pkg/pose"
)

// TrackingStatus is the dashboard view of the tracker.
type TrackingStatus struct {
	State           string  `json:"state"` // tracking, frozen, lost
	FPS             float64 `json:"fps"`
	CameraConnected bool    `json:"camera_connected"`
	DetectorLoaded  bool    `json:"detector_loaded"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, tracking, error
	Message string `json:"message"`
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	port    string
	started time.Time

	// State
	status    TrackingStatus
	lastState string
	statusMu  sync.RWMutex

	// Log buffer (last 500 entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	// Hubs for websocket broadcast (thread-safe!)
	statusHub  *hub.Hub
	logHub     *hub.Hub
	previewHub *hub.Hub
}

// NewServer creates a new web dashboard server
func NewServer(port string) *Server {
	s := &Server{
		port:       port,
		logs:       make([]LogEntry, 0, 500),
		statusHub:  hub.New("status"),
		logHub:     hub.New("logs"),
		previewHub: hub.New("preview"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Headlock Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app
	return s
}

// Start starts the web server
func (s *Server) Start() error {
	s.started = time.Now()
	log.Info("web dashboard listening", "addr", "http://localhost:"+s.port)

	// Start all hubs
	go s.statusHub.Run()
	go s.logHub.Run()
	go s.previewHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "err", err)
		}
	}()
}

// UpdateTracking implements the pipeline diagnostics callback: it records
// the latest state, fans it out to dashboard clients, and logs state
// transitions to the log stream.
func (s *Server) UpdateTracking(state pose.State, fps float64) {
	s.statusMu.Lock()
	changed := s.lastState != state.String()
	s.lastState = state.String()
	s.status.State = state.String()
	s.status.FPS = fps
	if !s.started.IsZero() {
		s.status.UptimeSeconds = time.Since(s.started).Seconds()
	}
	status := s.status // Copy for broadcast
	s.statusMu.Unlock()

	if changed {
		s.AddLog("tracking", "state changed to "+state.String())
	}
	s.statusHub.BroadcastStatus(status)
}

// SetCameraConnected records whether the capture device is open.
func (s *Server) SetCameraConnected(connected bool) {
	s.statusMu.Lock()
	s.status.CameraConnected = connected
	s.statusMu.Unlock()
}

// SetDetectorLoaded records whether the face detector model loaded.
func (s *Server) SetDetectorLoaded(loaded bool) {
	s.statusMu.Lock()
	s.status.DetectorLoaded = loaded
	s.statusMu.Unlock()
}

// AddLog adds a log entry and broadcasts to clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > 500 {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastStatus(entry)
}

// SendPreviewFrame sends a composited preview frame to all connected clients
func (s *Server) SendPreviewFrame(jpegData []byte) {
	s.previewHub.BroadcastFrame(jpegData)
}

// PreviewClientCount reports how many clients watch the preview stream, so
// callers can skip JPEG encoding when nobody is connected.
func (s *Server) PreviewClientCount() int {
	return s.previewHub.ClientCount()
}

// Shutdown gracefully stops the web server and its broadcast hubs
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.statusHub.Stop()
	s.logHub.Stop()
	s.previewHub.Stop()
	return err
}
