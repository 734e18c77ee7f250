package mock

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/client/test/result/mock"
)

// Server is a mock beacon network serving generated chains over HTTP.
type Server struct {
	Addr string

	mu        sync.Mutex
	chains    []*mock.Chain
	requests  []string
	overrides map[string]response
	tamper    func(*chain.RawRandomness)
}

type response struct {
	status int
	body   string
}

// NewMockHTTPPublicServer starts a server for the given chains on a local
// port. It is shut down when the test ends.
func NewMockHTTPPublicServer(t *testing.T, chains ...*mock.Chain) *Server {
	t.Helper()

	s := &Server{chains: chains, overrides: make(map[string]response)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /chains", s.handleChains)
	mux.HandleFunc("GET /{hash}/info", s.handleInfo)
	mux.HandleFunc("GET /{hash}/public/{round}", s.handlePublic)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s.Addr = listener.Addr().String()

	httpServer := &http.Server{Handler: s.record(mux), ReadHeaderTimeout: 3 * time.Second}
	go func() { _ = httpServer.Serve(listener) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	})
	return s
}

// URL is the endpoint to point clients at.
func (s *Server) URL() string {
	return "http://" + s.Addr
}

// Requests returns the paths requested so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Override makes the server answer path with status and body.
func (s *Server) Override(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = response{status: status, body: body}
}

// Tamper lets f modify every round before it is served.
func (s *Server) Tamper(f func(*chain.RawRandomness)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tamper = f
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		o, ok := s.overrides[r.URL.Path]
		s.mu.Unlock()

		if ok {
			w.WriteHeader(o.status)
			_, _ = w.Write([]byte(o.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) chain(hash string) *mock.Chain {
	for _, c := range s.chains {
		if c.Hash() == hash {
			return c
		}
	}
	return nil
}

func (s *Server) handleChains(w http.ResponseWriter, _ *http.Request) {
	hashes := make([]string, 0, len(s.chains))
	for _, c := range s.chains {
		hashes = append(hashes, c.Hash())
	}
	writeJSON(w, hashes)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	c := s.chain(r.PathValue("hash"))
	if c == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, c.Info)
}

func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	c := s.chain(r.PathValue("hash"))
	if c == nil {
		http.NotFound(w, r)
		return
	}

	var round uint64
	if rs := r.PathValue("round"); rs != "latest" {
		var err error
		round, err = strconv.ParseUint(rs, 10, 64)
		if err != nil {
			http.Error(w, "invalid round", http.StatusBadRequest)
			return
		}
	}

	raw, ok := c.Round(round)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	tamper := s.tamper
	s.mu.Unlock()
	if tamper != nil {
		tamper(&raw)
	}
	writeJSON(w, raw)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
