// Package bloodhoundtest provides an in-process fake of the BloodHound API for tests.
package bloodhoundtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	StatusComplete = "Complete"
	StatusFailed   = "Failed"
)

// Upload is the server-side record of one upload batch
type Upload struct {
	ID            int64
	Files         [][]byte
	Ended         bool
	Polls         int
	StatusMessage string
}

type feature struct {
	ID      int64  `json:"id"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Server fakes the subset of /api/v2 used by hound
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Username   string
	UserID     string
	secret     string
	needsReset bool
	tokens     map[string]bool
	tokenSeq   int

	features []*feature
	uploads  []*Upload
	uploadID int64

	// CompleteAfterPolls is the number of status polls an ended batch stays "Ingesting"
	CompleteAfterPolls int
	// FinalStatus is reported once a batch is done, "Complete" by default
	FinalStatus string
	// ClearStatus is the answer to clear-database, 204 by default
	ClearStatus int
	// ToggleStatus is the answer to feature toggles, 200 by default
	ToggleStatus int
	// UploadStatus overrides the answer to file uploads when non-zero
	UploadStatus int

	LoginCalls  int
	ClearCalls  int
	UserAgents  []string
	BadRequests []string
}

// New starts a fake whose admin account accepts secret
func New(t testing.TB, secret string) *Server {
	t.Helper()

	s := &Server{
		Username:     "admin",
		UserID:       "0f5c6a2e-7d4b-4b7e-9a61-1c2d3e4f5a6b",
		secret:       secret,
		needsReset:   true,
		tokens:       map[string]bool{},
		FinalStatus:  StatusComplete,
		ClearStatus:  http.StatusNoContent,
		ToggleStatus: http.StatusOK,
		features: []*feature{
			{ID: 1, Key: "butterfly_analysis", Name: "Enhanced Asset Inbound-Outbound Exposure Analysis"},
			{ID: 2, Key: "clear_graph_data", Name: "Clear Graph Data"},
		},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Secret returns the password currently accepted for the admin account
func (s *Server) Secret() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

func (s *Server) NeedsReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsReset
}

func (s *Server) FeatureEnabled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.features {
		if f.Key == key {
			return f.Enabled
		}
	}
	return false
}

// Uploads returns a copy of the recorded batches, oldest first
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Upload, len(s.uploads))
	for i, u := range s.uploads {
		out[i] = *u
	}
	return out
}

// Port returns the TCP port the fake listens on
func (s *Server) Port() int {
	idx := strings.LastIndex(s.URL, ":")
	port, _ := strconv.Atoi(s.URL[idx+1:])
	return port
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recordUserAgent)

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/self", s.handleSelf)
			r.Put("/bloodhound-users/{id}/secret", s.handleSecret)
			r.Get("/features", s.handleFeatures)
			r.Put("/features/{id}/toggle", s.handleToggle)
			r.Post("/file-upload/start", s.handleUploadStart)
			r.Post("/file-upload/{id}", s.handleUploadFile)
			r.Post("/file-upload/{id}/end", s.handleUploadEnd)
			r.Get("/file-upload", s.handleUploadList)
			r.Post("/clear-database", s.handleClear)
		})
	})
	return r
}

func (s *Server) recordUserAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.UserAgents = append(s.UserAgents, r.UserAgent())
		if r.Header.Get("Content-Type") != "application/json" {
			s.BadRequests = append(s.BadRequests, r.Method+" "+r.URL.Path)
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]string{{"message": "authentication is invalid"}}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoginMethod string `json:"login_method"`
		Username    string `json:"username"`
		Secret      string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.LoginCalls++

	if req.LoginMethod != "secret" || req.Username != s.Username || req.Secret != s.secret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]string{{"message": "invalid login"}}})
		return
	}

	s.tokenSeq++
	token := fmt.Sprintf("token-%d", s.tokenSeq)
	s.tokens[token] = true
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"user_id":       s.UserID,
		"auth_expired":  s.needsReset,
		"session_token": token,
	}})
}

func (s *Server) handleSelf(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":             s.UserID,
		"principal_name": s.Username,
	}})
}

func (s *Server) handleSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret             string `json:"secret"`
		NeedsPasswordReset bool   `json:"needs_password_reset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Secret == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "secret is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if chi.URLParam(r, "id") != s.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	s.secret = req.Secret
	s.needsReset = req.NeedsPasswordReset
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": s.features})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ToggleStatus != http.StatusOK {
		writeJSON(w, s.ToggleStatus, map[string]string{"error": "toggle rejected"})
		return
	}
	for _, f := range s.features {
		if f.ID == id {
			f.Enabled = !f.Enabled
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"enabled": f.Enabled}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such feature"})
}

func (s *Server) handleUploadStart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadID++
	s.uploads = append(s.uploads, &Upload{ID: s.uploadID, StatusMessage: "Running"})
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": s.uploadID, "status": 0}})
}

func (s *Server) findUpload(r *http.Request) *Upload {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	for _, u := range s.uploads {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UploadStatus != 0 {
		writeJSON(w, s.UploadStatus, map[string]string{"error": "upload rejected"})
		return
	}
	u := s.findUpload(r)
	if u == nil || u.Ended {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open batch"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is not JSON"})
		return
	}
	u.Files = append(u.Files, body)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUploadEnd(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUpload(r)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such batch"})
		return
	}
	u.Ended = true
	u.StatusMessage = "Ingesting"
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUploadList(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*Upload, len(s.uploads))
	copy(sorted, s.uploads)
	if r.URL.Query().Get("sort_by") == "-id" {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	}

	data := []map[string]any{}
	for i, u := range sorted {
		if i < skip {
			continue
		}
		if len(data) == limit {
			break
		}
		if u.Ended && u.StatusMessage == "Ingesting" {
			u.Polls++
			if u.Polls > s.CompleteAfterPolls {
				u.StatusMessage = s.FinalStatus
			}
		}
		data = append(data, map[string]any{
			"id":             u.ID,
			"status":         statusCode(u.StatusMessage),
			"status_message": u.StatusMessage,
			"total_files":    len(u.Files),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data, "count": len(s.uploads)})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClearCalls++
	if s.ClearStatus != http.StatusNoContent {
		writeJSON(w, s.ClearStatus, map[string]string{"error": "clear rejected"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusCode(message string) int {
	switch message {
	case "Running":
		return 0
	case "Complete":
		return 2
	case "Canceled":
		return 3
	case "Timed Out":
		return 4
	case "Failed":
		return 5
	case "Ingesting":
		return 6
	default:
		return -1
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
