package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health and Prometheus metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handlePrometheus)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Fleet ingest endpoints. ESP32 firmware carries no JWT, so
		// registration, telemetry, and update callbacks stay open,
		// mirroring the MQTT ingest path.
		r.Post("/sensors/register", s.handleRegisterSensor)
		r.Post("/sensors/data", s.handleSensorData)
		r.Post("/ota/updates/{id}/progress", s.handleUpdateProgress)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints
			r.Get("/device-templates", s.handleDeviceTemplates)
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Post("/bulk-control", s.handleBulkControl)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/control", s.handleControlDevice)
					r.Get("/status", s.handleDeviceStatus)
					r.Get("/history", s.handleDeviceHistory)
				})
			})

			// Room endpoints
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)
				r.Post("/", s.handleCreateRoom)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoom)
					r.Put("/", s.handleUpdateRoom)
					r.Delete("/", s.handleDeleteRoom)
				})
			})

			// Sensor fleet endpoints
			r.Route("/sensors", func(r chi.Router) {
				r.Get("/", s.handleListSensors)
				r.Get("/summary", s.handleSensorSummary)
				r.Get("/health", s.handleSensorHealth)
				r.Post("/cleanup", s.handleSensorCleanup)

				r.Get("/alerts", s.handleListAlerts)
				r.Post("/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSensor)
					r.Get("/readings", s.handleSensorReadings)
					r.Get("/config", s.handleGetSensorConfig)
					r.Put("/config", s.handlePutSensorConfig)

					r.Route("/ota", func(r chi.Router) {
						r.Post("/", s.handleStartUpdate)
						r.Get("/status", s.handleUpdateStatus)
						r.Post("/cancel", s.handleCancelUpdate)
					})
				})
			})

			// Bulk configuration endpoints
			r.Route("/config", func(r chi.Router) {
				r.Get("/devices", s.handleListDevices)
				r.Post("/devices", s.handleCreateDevice)
				r.Get("/export", s.handleConfigExport)
				r.Post("/import", s.handleConfigImport)
				r.Post("/reset", s.handleConfigReset)
				r.Post("/validate", s.handleConfigValidate)
				r.Get("/discover", s.handleConfigDiscover)
			})

			// Audit trail
			r.Get("/audit", s.handleListAudit)

			// Chat relay endpoints
			r.Route("/chat", func(r chi.Router) {
				r.Post("/", s.handleChat)
				r.Get("/status", s.handleChatStatus)
				r.Get("/history", s.handleChatHistory)
				r.Post("/clear", s.handleChatClear)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status with component checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			components["database"] = "error"
		} else {
			components["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			components["mqtt"] = "ok"
		} else {
			components["mqtt"] = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"components":     components,
	})
}
