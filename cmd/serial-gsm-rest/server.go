package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/telaak/serial-gsm-rest/internal/constants"
	apperrors "github.com/telaak/serial-gsm-rest/internal/errors"
	"github.com/telaak/serial-gsm-rest/internal/middleware"
	"github.com/telaak/serial-gsm-rest/internal/models"
)

// GSMService is the modem surface the HTTP front end exposes.
type GSMService interface {
	GetSimInbox(ctx context.Context) ([]models.SMSMessage, error)
	SendMessage(ctx context.Context, recipient, message string, silent bool) ([]models.TransmissionResult, error)
	ReadMessage(ctx context.Context, index models.DeviceIndex) (models.SMSMessage, error)
	DeleteMessage(ctx context.Context, index models.DeviceIndex) error
	DeleteAllMessages(ctx context.Context) error
}

// StoreService is the persistence surface the HTTP front end exposes.
type StoreService interface {
	GetMessage(ctx context.Context, id models.RowID) (models.SMSMessage, error)
	GetMessages(ctx context.Context) ([]models.SMSMessage, error)
	DeleteMessage(ctx context.Context, id models.RowID) error
	GetSentMessage(ctx context.Context, id models.RowID) (models.SentMessage, error)
	GetSentMessages(ctx context.Context) ([]models.SentMessage, error)
	DeleteSentMessage(ctx context.Context, id models.RowID) error
}

type Server struct {
	router *mux.Router
	logger *logrus.Logger
	gsm    GSMService
	store  StoreService
	server *http.Server
}

func NewServer(gsm GSMService, store StoreService, wsHandler http.HandlerFunc, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		gsm:    gsm,
		store:  store,
	}

	s.router.Use(middleware.Observability(logger))
	s.setupRoutes(wsHandler)
	return s
}

func (s *Server) setupRoutes(wsHandler http.HandlerFunc) {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	// WebSocket subscriptions
	s.router.HandleFunc("/ws", wsHandler).Methods(http.MethodGet)

	// Device inbox
	s.router.HandleFunc("/gsm", s.handleGetInbox()).Methods(http.MethodGet)
	s.router.HandleFunc("/gsm", s.handleSendMessage()).Methods(http.MethodPost)
	s.router.HandleFunc("/gsm", s.handleDeleteAllMessages()).Methods(http.MethodDelete)
	s.router.HandleFunc("/gsm/{index:[0-9]+}", s.handleReadMessage()).Methods(http.MethodGet)
	s.router.HandleFunc("/gsm/{index:[0-9]+}", s.handleDeleteDeviceMessage()).Methods(http.MethodDelete)

	// Persisted received messages
	s.router.HandleFunc("/messages", s.handleGetMessages()).Methods(http.MethodGet)
	s.router.HandleFunc("/messages/{rowid:[0-9]+}", s.handleGetMessage()).Methods(http.MethodGet)
	s.router.HandleFunc("/messages/{rowid:[0-9]+}", s.handleDeleteMessage()).Methods(http.MethodDelete)

	// Persisted sent messages
	s.router.HandleFunc("/sent", s.handleGetSentMessages()).Methods(http.MethodGet)
	s.router.HandleFunc("/sent/{rowid:[0-9]+}", s.handleGetSentMessage()).Methods(http.MethodGet)
	s.router.HandleFunc("/sent/{rowid:[0-9]+}", s.handleDeleteSentMessage()).Methods(http.MethodDelete)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleGetInbox() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inbox, err := s.gsm.GetSimInbox(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, inbox)
	}
}

type sendMessageRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Silent    bool   `json:"silent"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid request body"))
			return
		}
		if req.Recipient == "" || req.Message == "" {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "recipient and message are required"))
			return
		}

		results, err := s.gsm.SendMessage(r.Context(), req.Recipient, req.Message, req.Silent)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, results)
	}
}

func (s *Server) handleReadMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := s.deviceIndex(w, r)
		if !ok {
			return
		}
		message, err := s.gsm.ReadMessage(r.Context(), index)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, message)
	}
}

func (s *Server) handleDeleteDeviceMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := s.deviceIndex(w, r)
		if !ok {
			return
		}
		if err := s.gsm.DeleteMessage(r.Context(), index); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleDeleteAllMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.gsm.DeleteAllMessages(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleGetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.store.GetMessages(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.rowID(w, r)
		if !ok {
			return
		}
		message, err := s.store.GetMessage(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, message)
	}
}

func (s *Server) handleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.rowID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteMessage(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleGetSentMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.store.GetSentMessages(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleGetSentMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.rowID(w, r)
		if !ok {
			return
		}
		message, err := s.store.GetSentMessage(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, message)
	}
}

func (s *Server) handleDeleteSentMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.rowID(w, r)
		if !ok {
			return
		}
		if err := s.store.DeleteSentMessage(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) deviceIndex(w http.ResponseWriter, r *http.Request) (models.DeviceIndex, bool) {
	raw := mux.Vars(r)["index"]
	index, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("invalid device index %q", raw)))
		return 0, false
	}
	return models.DeviceIndex(index), true
}

func (s *Server) rowID(w http.ResponseWriter, r *http.Request) (models.RowID, bool) {
	raw := mux.Vars(r)["rowid"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("invalid row identifier %q", raw)))
		return 0, false
	}
	return models.RowID(id), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)

	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput:
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}

	s.writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(code),
		Message: err.Error(),
	}})
}
