package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/service"
	"github.com/sejink/gatehouse/internal/gatehouse/store"
	"github.com/sejink/gatehouse/internal/gatehouse/types"
)

type Dependencies struct {
	Logger       *slog.Logger
	Addr         string
	GateService  *service.GateService
	AuthService  *service.AuthService
	EventLog     store.EventLogStore
	DB           *sql.DB                 // health checks only
	Cameras      service.CameraLister
	DeviceStatus store.DeviceStatusStore // optional; per-device health detail
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	mux        *http.ServeMux
	gate       *service.GateService
	auth       *service.AuthService
	events     store.EventLogStore
	db         *sql.DB
	cameras    service.CameraLister
	status     store.DeviceStatusStore
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:  d.Logger,
		mux:     mux,
		gate:    d.GateService,
		auth:    d.AuthService,
		events:  d.EventLog,
		db:      d.DB,
		cameras: d.Cameras,
		status:  d.DeviceStatus,
	}

	mux.HandleFunc("POST /v1/gate", s.handleGate)
	mux.HandleFunc("GET /v1/gate", s.handleGateExit)
	mux.HandleFunc("POST /v1/snapshot", s.handleStoreSnapshot)
	mux.HandleFunc("GET /v1/logs", s.handleLogs)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("GET /v1/healthz", s.handleHealth)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleGate parses the action body into a typed command at the boundary;
// unknown actions never reach the core.
func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	var req types.GateRequest
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusUnauthorized, "missing_api_key", "API key is required")
		return
	}

	cmd, err := types.ParseCommand(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
		return
	}

	ctx := r.Context()
	switch c := cmd.(type) {
	case types.ReadyCommand:
		resp, err := s.gate.Ready(ctx, req.APIKey)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case types.OpenCommand:
		client := c.Client
		if client.UserAgent == "" {
			client.UserAgent = r.UserAgent()
		}
		resp, err := s.gate.Open(ctx, req.APIKey, client, clientIP(r))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case types.SnapshotCommand:
		uri, err := s.gate.Snapshot(ctx, req.APIKey, c.Device)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uri)

	case types.ExitCommand:
		resp, err := s.gate.Exit(ctx, req.APIKey, c.Mode)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleGateExit keeps the legacy exterior-camera trigger:
// GET /v1/gate?api_key=...&mode=exit
func (s *Server) handleGateExit(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("api_key")
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing_api_key", "check api_key")
		return
	}
	mode := r.URL.Query().Get("mode")

	resp, err := s.gate.Exit(r.Context(), apiKey, mode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownAPIKey), errors.Is(err, service.ErrExitNotPermitted):
			writeError(w, http.StatusUnauthorized, "invalid_api_key", "check api_key")
		case errors.Is(err, service.ErrOpenFailed):
			writeError(w, http.StatusInternalServerError, "open_failed", "Failed to open")
		default:
			s.logger.Error("exit error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxSnapshotUpload caps a pushed snapshot at 10 MiB.
const maxSnapshotUpload = 10 << 20

// handleStoreSnapshot accepts device-push snapshots: the camera POSTs a
// multipart "snapshot" file with event parameters in the query string.  The
// pushing firmware carries no credential, so there is no API key check; the
// record lands under the fixed "snapshot" actor.
func (s *Server) handleStoreSnapshot(w http.ResponseWriter, r *http.Request) {
	params := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}

	// A push without a file is still a loggable event; form errors are
	// tolerated the same way.
	var image []byte
	if err := r.ParseMultipartForm(maxSnapshotUpload); err == nil {
		if file, _, err := r.FormFile("snapshot"); err == nil {
			image, _ = io.ReadAll(io.LimitReader(file, maxSnapshotUpload))
			_ = file.Close()
		}
	}

	if err := s.gate.StoreSnapshot(r.Context(), params, image); err != nil {
		s.logger.Error("snapshot store error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "snapshot stored OK"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	offset := queryInt(r, "offset", 20)
	if page < 1 || offset < 1 || offset > 100 {
		writeError(w, http.StatusBadRequest, "bad_pagination", "page must be >= 1 and 1 <= offset <= 100")
		return
	}

	logs, err := s.events.List(r.Context(), page, offset)
	if err != nil {
		s.logger.Error("log list error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	total, err := s.events.Count(r.Context())
	if err != nil {
		s.logger.Error("log count error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	entries := make([]logEntry, 0, len(logs))
	for _, rec := range logs {
		entries = append(entries, logEntryFrom(rec))
	}

	writeJSON(w, http.StatusOK, logsResponse{
		Logs:   entries,
		Page:   page,
		Offset: offset,
		Total:  total,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	apiKey, err := s.auth.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginFailed) {
			writeError(w, http.StatusUnauthorized, "login_failed", "Invalid user_id or password")
			return
		}
		s.logger.Error("login error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, types.LoginResponse{APIKey: apiKey, UserID: req.UserID})
}

type deviceHealth struct {
	LastSeen *string `json:"last_seen,omitempty"`
	OK       bool    `json:"ok"`
	Error    string  `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			status = "storage unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	// Per-device command outcomes.  A device with no entry yet has never
	// been commanded; it is listed with no last_seen rather than omitted.
	devices := make(map[string]deviceHealth)
	for _, name := range s.cameras.Names() {
		var dh deviceHealth
		if s.status != nil {
			if rec, err := s.status.Status(r.Context(), name); err == nil {
				seen := rec.LastSeenAt.UTC().Format(time.RFC3339)
				dh = deviceHealth{LastSeen: &seen, OK: rec.LastOK, Error: rec.LastError}
			}
		}
		devices[name] = dh
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"devices": devices,
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses,
// keeping the distinct user-facing messages.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownAPIKey):
		writeError(w, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
	case errors.Is(err, service.ErrNotActive):
		writeError(w, http.StatusForbidden, "not_valid_auth", "Not valid auth, contact admin")
	case errors.Is(err, service.ErrOutsideWindow):
		writeError(w, http.StatusForbidden, "not_valid_datetime", "Not valid datetime, contact admin")
	case errors.Is(err, service.ErrExitNotPermitted):
		writeError(w, http.StatusUnauthorized, "invalid_api_key", "check api_key")
	case errors.Is(err, service.ErrOpenFailed):
		writeError(w, http.StatusInternalServerError, "open_failed", "Failed to open")
	default:
		s.logger.Error("gate error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

type logsResponse struct {
	Logs   []logEntry `json:"logs"`
	Page   int        `json:"page"`
	Offset int        `json:"offset"`
	Total  int64      `json:"total"`
}

type logEntry struct {
	RegDate   string            `json:"regdate"`
	UserID    *string           `json:"user_id"`
	EventInfo types.EventDetail `json:"eventinfo"`
	Snapshot  *string           `json:"snapshot"`
	UserAgent string            `json:"user_agent"`
}

func logEntryFrom(rec store.LogRecord) logEntry {
	return logEntry{
		RegDate:   rec.RegDate,
		UserID:    rec.ActorID,
		EventInfo: rec.Detail,
		Snapshot:  rec.Evidence,
		UserAgent: rec.UserAgent,
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}
