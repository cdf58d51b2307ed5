// Package registrytest provides an in-memory registry speaking the same
// search/invite/update wire format as the real service.
package registrytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Call is one request observed by the server.
type Call struct {
	Op   string
	Kind string
	OSID string
}

type response struct {
	status int
	body   string
}

// Server is a fake registry. Documents are plain JSON objects; every
// invite mints a fresh osid.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     map[string][]map[string]any
	calls    []Call
	failures map[string]response
	unique   map[string][]string
}

func NewServer() *Server {
	s := &Server{
		docs:     map[string][]map[string]any{},
		failures: map[string]response{},
		unique:   map[string][]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Seed stores doc under kind and returns its osid.
func (s *Server) Seed(kind string, doc map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(kind, doc)
}

// Records returns a copy of every document of kind.
func (s *Server) Records(kind string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.docs[kind]))
	for _, d := range s.docs[kind] {
		cp := make(map[string]any, len(d))
		for k, v := range d {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Calls returns the requests served so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls counts requests matching op and kind.
func (s *Server) CountCalls(op, kind string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op && c.Kind == kind {
			n++
		}
	}
	return n
}

// FailNext makes the next request for (op, kind) answer with status.
func (s *Server) FailNext(op, kind string, status int) {
	s.RespondNext(op, kind, status, `{"params":{"status":"UNSUCCESSFUL","errmsg":"injected"}}`)
}

// RespondNext makes the next request for (op, kind) answer with status and
// the raw body, without touching stored documents.
func (s *Server) RespondNext(op, kind string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+"/"+kind] = response{status: status, body: body}
}

// Unique makes invites of kind answer with a non-SUCCESSFUL status when a
// document with the same values for fields already exists.
func (s *Server) Unique(kind string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[kind] = fields
}

func (s *Server) insert(kind string, doc map[string]any) string {
	osid := "1-" + uuid.NewString()
	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["osid"] = osid
	s.docs[kind] = append(s.docs[kind], stored)
	return osid
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	kind, tail := parts[0], parts[1]

	op := "update"
	switch {
	case r.Method == http.MethodPost && tail == "search":
		op = "search"
	case r.Method == http.MethodPost && tail == "invite":
		op = "invite"
	case r.Method != http.MethodPut:
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Kind: kind, OSID: osidOf(op, tail)})
	if resp, ok := s.failures[op+"/"+kind]; ok {
		delete(s.failures, op+"/"+kind)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch op {
	case "search":
		s.search(w, kind, body)
	case "invite":
		s.invite(w, kind, body)
	default:
		s.update(w, kind, tail, body)
	}
}

func osidOf(op, tail string) string {
	if op == "update" {
		return tail
	}
	return ""
}

func (s *Server) search(w http.ResponseWriter, kind string, body map[string]any) {
	filters, _ := body["filters"].(map[string]any)
	matches := []map[string]any{}
	for _, doc := range s.docs[kind] {
		if matchesAll(doc, filters) {
			matches = append(matches, doc)
		}
	}
	writeJSON(w, http.StatusOK, matches)
}

func matchesAll(doc, filters map[string]any) bool {
	for field, cond := range filters {
		eq, _ := cond.(map[string]any)
		if fmt.Sprint(doc[field]) != fmt.Sprint(eq["eq"]) {
			return false
		}
	}
	return true
}

func (s *Server) invite(w http.ResponseWriter, kind string, body map[string]any) {
	if fields, ok := s.unique[kind]; ok {
		filters := map[string]any{}
		for _, f := range fields {
			filters[f] = map[string]any{"eq": body[f]}
		}
		for _, doc := range s.docs[kind] {
			if matchesAll(doc, filters) {
				writeJSON(w, http.StatusOK, map[string]any{
					"params": map[string]string{"status": "UNSUCCESSFUL", "errmsg": "duplicate"},
				})
				return
			}
		}
	}
	osid := s.insert(kind, body)
	writeJSON(w, http.StatusOK, map[string]any{
		"params": map[string]string{"status": "SUCCESSFUL"},
		"result": map[string]any{kind: map[string]string{"osid": osid}},
	})
}

func (s *Server) update(w http.ResponseWriter, kind, osid string, body map[string]any) {
	for _, doc := range s.docs[kind] {
		if doc["osid"] == osid {
			for k, v := range body {
				doc[k] = v
			}
			writeJSON(w, http.StatusOK, map[string]any{"params": map[string]string{"status": "SUCCESSFUL"}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"params": map[string]string{"status": "UNSUCCESSFUL", "errmsg": "record not found"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
