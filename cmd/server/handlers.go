package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/liveproof"
	"github.com/himanishpuri/LiveProof/pkg/logger"
	"github.com/himanishpuri/LiveProof/pkg/models"
	"github.com/himanishpuri/LiveProof/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service liveproof.Service
	config  *ServerConfig
	log     liveproof.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	TempDir        string
	MaxUploadBytes int64
	AllowedOrigins []string
	ProofDir       string // served under /proofs/ when set
}

// NewServer creates a new server instance
func NewServer(service liveproof.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().WithPrefix("[http]"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps a pipeline error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidChallengeHash), errors.Is(err, models.ErrInvalidRegion):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrContractNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrChallengeMismatch):
		return http.StatusConflict
	case errors.Is(err, models.ErrChallengeExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrAudioDecode), errors.Is(err, models.ErrVideoDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrChainUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "LiveProof verifier",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":  "GET /health",
			"verify":  "POST /api/verify",
			"derive":  "POST /api/challenge/derive",
			"history": "GET /api/history",
			"entry":   "GET /api/history/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Time:    time.Now().Format(time.RFC3339),
		Backend: s.service.Status(),
	})
}

// handleVerify handles POST /api/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Warnf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := VerifyForm{
		Challenge:    r.FormValue("challenge"),
		PopAddress:   r.FormValue("pop_address"),
		BaseBlock:    r.FormValue("base_block"),
		ExpiresBlock: r.FormValue("expires_block"),
		ROI:          r.FormValue("roi"),
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, "upload_"+utils.NewID()+filepath.Ext(filepath.Base(header.Filename)))
	req, err := form.Request(tempFile)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	s.log.Infof("Verifying upload %s (%d bytes) for challenge %s", header.Filename, header.Size, req.ChallengeHash)
	report, err := s.service.Verify(ctx, req)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			s.log.Errorf("Verification failed: %v", err)
		} else {
			s.log.Warnf("Verification rejected: %v", err)
		}
		s.respondError(w, status, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, newVerifyResponse(report))
}

// handleDerive handles POST /api/challenge/derive
func (s *Server) handleDerive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req DeriveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.service.DeriveChallenge(req.Hash)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, DeriveResponse{Hash: req.Hash, Challenge: c})
}

// handleHistory handles GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit %q", v))
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.log.Errorf("Failed to read history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// handleHistoryEntry handles GET /api/history/{id}
func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	entry, err := s.service.HistoryEntry(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			s.log.Errorf("Failed to read history entry %s: %v", id, err)
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}
