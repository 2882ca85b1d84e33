package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// WorkloadServer emulates a deployed file-writer workload over an
// in-memory volume, serving the HTTP surface the verification probe
// checks. Point a fixture's workload endpoint at URL().
type WorkloadServer struct {
	mu        sync.Mutex
	files     map[string]string
	unhealthy bool

	server *httptest.Server
}

// NewWorkloadServer starts the server. Callers own Close.
func NewWorkloadServer() *WorkloadServer {
	w := &WorkloadServer{files: make(map[string]string)}
	w.server = httptest.NewServer(w.handler())
	return w
}

// URL returns the server's base URL.
func (w *WorkloadServer) URL() string {
	return w.server.URL
}

// Close shuts the server down.
func (w *WorkloadServer) Close() {
	w.server.Close()
}

// SetUnhealthy makes the health endpoint answer 500 until reset.
func (w *WorkloadServer) SetUnhealthy(unhealthy bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unhealthy = unhealthy
}

// FileCount returns how many files landed on the in-memory volume.
func (w *WorkloadServer) FileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

func (w *WorkloadServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		unhealthy := w.unhealthy
		w.mu.Unlock()
		if unhealthy {
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(rw).Encode(map[string]any{
			"status":            "healthy",
			"volume_accessible": true,
			"volume_writable":   true,
		})
	})
	mux.HandleFunc("POST /write-file", func(rw http.ResponseWriter, r *http.Request) {
		var req struct {
			Content  string `json:"content"`
			Filename string `json:"filename"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.HasSuffix(req.Filename, ".txt") {
			req.Filename += ".txt"
		}
		w.mu.Lock()
		w.files[req.Filename] = req.Content
		w.mu.Unlock()
		json.NewEncoder(rw).Encode(map[string]string{"filename": req.Filename})
	})
	mux.HandleFunc("GET /read-file/{filename}", func(rw http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")
		w.mu.Lock()
		content, ok := w.files[name]
		w.mu.Unlock()
		if !ok {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(rw).Encode(map[string]string{"filename": name, "content": content})
	})
	mux.HandleFunc("GET /list-files", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		files := make([]map[string]string, 0, len(w.files))
		for name := range w.files {
			files = append(files, map[string]string{"filename": name})
		}
		w.mu.Unlock()
		json.NewEncoder(rw).Encode(map[string]any{"files": files, "count": len(files)})
	})
	return mux
}
