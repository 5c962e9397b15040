package testsupport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Origin is an in-memory FastDL file server.
type Origin struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	failures map[string]int
	requests map[string]int
}

// NewOrigin starts an origin server that is closed when the test ends.
func NewOrigin(t testing.TB) *Origin {
	t.Helper()
	o := &Origin{
		files:    make(map[string][]byte),
		failures: make(map[string]int),
		requests: make(map[string]int),
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.requests[r.URL.Path]++
	status, failing := o.failures[r.URL.Path]
	data, ok := o.files[r.URL.Path]
	o.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(status), status)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}
}

// Set publishes data at path, replacing any previous content.
func (o *Origin) Set(path string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = append([]byte(nil), data...)
}

// Remove deletes path so requests return 404.
func (o *Origin) Remove(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.files, path)
}

// Fail makes requests for path answer with status until Recover is called.
func (o *Origin) Fail(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures[path] = status
}

// Recover clears a failure installed by Fail.
func (o *Origin) Recover(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.failures, path)
}

// Requests reports how many times path was requested.
func (o *Origin) Requests(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requests[path]
}
