package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meshgate/internal/constants"
	apperrors "meshgate/internal/errors"
	"meshgate/internal/middleware"
	"meshgate/internal/models"
	"meshgate/internal/privacy"
	"meshgate/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// emptyTwiML is the carrier acknowledgement body. The webhook contract
// requires a success response regardless of routing outcome.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type Server struct {
	cfg    *models.Config
	router *mux.Router
	logger *logrus.Logger
	bridge *service.CommandRouter
	server *http.Server
}

func NewServer(cfg *models.Config, bridge *service.CommandRouter, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger,
		bridge: bridge,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	// Carrier inbound SMS webhook
	s.router.HandleFunc("/webhook/sms", s.handleCarrierWebhook()).Methods(http.MethodPost)

	// Operator send endpoint
	s.router.HandleFunc("/api/send", s.handleSend()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Warn("Failed to write health response")
		}
	}
}

// handleCarrierWebhook receives inbound SMS from the carrier. The
// response is always a 200 with empty TwiML: routing failures must never
// surface as webhook delivery failures.
func (s *Server) handleCarrierWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		webhookURL := ""
		if s.cfg.Server.PublicURL != "" {
			webhookURL = s.cfg.Server.PublicURL + r.URL.Path
		}
		if err := verifyCarrierSignature(r, webhookURL, s.cfg.Carrier.AuthToken); err != nil {
			s.logger.WithError(err).Warn("Rejected carrier webhook with invalid signature")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		payload := models.CarrierWebhookPayload{
			MessageSID: r.PostFormValue("MessageSid"),
			From:       r.PostFormValue("From"),
			To:         r.PostFormValue("To"),
			Body:       r.PostFormValue("Body"),
		}

		if payload.From == "" || payload.Body == "" {
			s.logger.Warn("Ignoring carrier webhook with missing From or Body")
		} else {
			s.logger.WithFields(logrus.Fields{
				"from": privacy.MaskPhoneForLog(payload.From),
				"sid":  payload.MessageSID,
			}).Info("Received inbound SMS")
			s.bridge.HandleInboundSMS(r.Context(), &payload)
		}

		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(emptyTwiML)); err != nil {
			s.logger.WithError(err).Warn("Failed to write webhook acknowledgement")
		}
	}
}

type sendRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

type sendResponse struct {
	MessageSID string `json:"message_sid"`
}

// handleSend is the operator send endpoint, guarded by the webhook
// secret. It bypasses per-sender rate limits but not phone validation.
func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Server.WebhookSecret == "" || r.Header.Get("X-API-Key") != s.cfg.Server.WebhookSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		sid, err := s.bridge.SendSMS(r.Context(), req.PhoneNumber, req.Message)
		if err != nil {
			switch apperrors.GetCode(err) {
			case apperrors.ErrCodeInvalidPhone, apperrors.ErrCodeInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				s.logger.WithError(err).Error("Operator SMS send failed")
				http.Error(w, "send failed", http.StatusBadGateway)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sendResponse{MessageSID: sid}); err != nil {
			s.logger.WithError(err).Warn("Failed to write send response")
		}
	}
}
