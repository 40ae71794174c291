// Package leotest provides an in-memory fake of the synced-directories
// API for tests. It serves both the directory endpoints and the identity
// provider's access-key exchange on a single httptest server.
package leotest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/getleo/cadsync/leo"
)

// Upload captures one create-file request for assertions.
type Upload struct {
	Record       leo.FileRecord
	Content      []byte
	Dependencies []leo.Dependency
}

// Server is an in-memory synced-directories API. All mutating handlers
// are safe for concurrent use.
type Server struct {
	HTTP *httptest.Server

	mu      sync.Mutex
	dirs    map[string]leo.Directory
	files   map[string]map[string]*Upload // directoryID -> componentID -> upload
	uploads []Upload

	// FailCreates makes create-file return 500 while set, to simulate
	// upload failures.
	FailCreates bool

	// ExchangeCalls counts access-key exchanges served.
	ExchangeCalls int
}

// NewServer starts a fake API server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		dirs:  make(map[string]leo.Directory),
		files: make(map[string]map[string]*Upload),
	}

	r := chi.NewRouter()
	r.Post("/v1/auth/accesskey/exchange", s.handleExchange)
	r.Route("/api/v1/synced-directories", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleCreateDirectory)
		r.Route("/{directoryID}", func(r chi.Router) {
			r.Get("/", s.handleGetDirectory)
			r.Delete("/", s.handleDeleteDirectory)
			r.Post("/files", s.handleCreateFile)
			r.Get("/files/sync-metadata", s.handleSyncMetadata)
			r.Delete("/files/{componentID}", s.handleDeleteFile)
		})
	})

	s.HTTP = httptest.NewServer(r)
	return s
}

// Close shuts the fake server down.
func (s *Server) Close() { s.HTTP.Close() }

// URL returns the server's base URL, valid for both the API and the
// identity endpoints.
func (s *Server) URL() string { return s.HTTP.URL }

// MintJWT builds an unsigned-but-well-formed JWT expiring at exp.
func MintJWT(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ExchangeCalls++
	s.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]string{"sessionJwt": MintJWT(time.Now().Add(time.Hour))})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	dirs := make([]leo.Directory, 0, len(s.dirs))
	for _, d := range s.dirs {
		dirs = append(dirs, d)
	}
	s.mu.Unlock()

	writeJSON(w, dirs)
}

func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req leo.CreateDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dir := leo.Directory{
		ID:        uuid.NewString(),
		URI:       req.URI,
		MachineID: req.MachineID,
	}

	s.mu.Lock()
	s.dirs[dir.ID] = dir
	s.files[dir.ID] = make(map[string]*Upload)
	s.mu.Unlock()

	writeJSON(w, dir)
}

func (s *Server) handleGetDirectory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	dir, ok := s.dirs[chi.URLParam(r, "directoryID")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}

	writeJSON(w, dir)
}

func (s *Server) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "directoryID")

	s.mu.Lock()
	_, ok := s.dirs[id]
	delete(s.dirs, id)
	delete(s.files, id)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateFile always mints a fresh component ID, even when the path
// already has a record. The real service behaves the same way; clients
// are expected to delete superseded records themselves.
func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.FailCreates
	files, ok := s.files[chi.URLParam(r, "directoryID")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}
	if fail {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	up := &Upload{
		Record: leo.FileRecord{
			ComponentID:         uuid.NewString(),
			FilePathInDirectory: r.FormValue("filePathInDirectory"),
			CheckSum:            r.FormValue("checkSum"),
			MimeType:            r.FormValue("mimeType"),
		},
		Content: content,
	}

	if deps := r.FormValue("dependencies"); deps != "" {
		if err := json.Unmarshal([]byte(deps), &up.Dependencies); err != nil {
			http.Error(w, "malformed dependencies", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	files[up.Record.ComponentID] = up
	s.uploads = append(s.uploads, *up)
	s.mu.Unlock()

	writeJSON(w, up.Record)
}

func (s *Server) handleSyncMetadata(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "directoryID")

	s.mu.Lock()
	files, ok := s.files[id]
	meta := leo.SyncMetadata{DirectoryID: id, Files: []leo.SyncMetadataFile{}}
	for _, up := range files {
		meta.Files = append(meta.Files, leo.SyncMetadataFile{
			ComponentID:         up.Record.ComponentID,
			FileStored:          true,
			CheckSum:            up.Record.CheckSum,
			FilePathInDirectory: up.Record.FilePathInDirectory,
			MimeType:            up.Record.MimeType,
		})
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, meta)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	dirID := chi.URLParam(r, "directoryID")
	componentID := chi.URLParam(r, "componentID")

	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.files[dirID]
	if !ok {
		http.Error(w, "directory not found", http.StatusNotFound)
		return
	}
	if _, ok := files[componentID]; !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	delete(files, componentID)
	w.WriteHeader(http.StatusNoContent)
}

// Files returns the live records for one directory.
func (s *Server) Files(directoryID string) []leo.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []leo.FileRecord
	for _, up := range s.files[directoryID] {
		recs = append(recs, up.Record)
	}
	return recs
}

// Uploads returns every create-file request seen, in order.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Upload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// Directories returns all registered directories.
func (s *Server) Directories() []leo.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dirs []leo.Directory
	for _, d := range s.dirs {
		dirs = append(dirs, d)
	}
	return dirs
}

// SetFail toggles create-file failures.
func (s *Server) SetFail(fail bool) {
	s.mu.Lock()
	s.FailCreates = fail
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
