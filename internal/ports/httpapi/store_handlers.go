package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"duelhall/internal/ports"
)

// PutResponse is returned by a successful document write.
type PutResponse struct {
	Version string `json:"version"`
}

// ListResponse wraps a collection listing.
type ListResponse struct {
	Documents []*ports.Document `json:"documents"`
}

func refFrom(r *http.Request) ports.Ref {
	return ports.Ref{
		Collection: r.PathValue("collection"),
		Owner:      r.URL.Query().Get("owner"),
		Key:        r.PathValue("key"),
	}
}

// visible reports whether the caller may read or delete records of owner.
// Records of other identities look absent. Writes may address any owner so
// that invites and match signals reach another identity's inbox.
func visible(r *http.Request, owner string) bool {
	return owner == "" || owner == caller(r.Context())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ref := refFrom(r)
	if !visible(r, ref.Owner) {
		s.fail(w, "HandleGet", ports.ErrNotFound)
		return
	}
	doc, err := s.store.Get(r.Context(), ref)
	if err != nil {
		s.fail(w, "HandleGet", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	ref := refFrom(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		s.fail(w, "HandlePut", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if len(body) > MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	if !json.Valid(body) {
		s.fail(w, "HandlePut", fmt.Errorf("%w: document is not valid JSON", errBadRequest))
		return
	}
	version, err := s.store.Put(r.Context(), ref, json.RawMessage(body), r.URL.Query().Get("version"))
	if err != nil {
		s.fail(w, "HandlePut", err)
		return
	}
	writeJSON(w, http.StatusOK, PutResponse{Version: version})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ref := refFrom(r)
	version := r.URL.Query().Get("version")
	if !visible(r, ref.Owner) {
		if version != ports.AnyVersion {
			s.fail(w, "HandleDelete", ports.ErrNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.store.Delete(r.Context(), ref, version); err != nil {
		s.fail(w, "HandleDelete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if !visible(r, owner) {
		writeJSON(w, http.StatusOK, ListResponse{Documents: []*ports.Document{}})
		return
	}
	docs, err := s.store.List(r.Context(), r.PathValue("collection"), owner)
	if err != nil {
		s.fail(w, "HandleList", err)
		return
	}
	if docs == nil {
		docs = []*ports.Document{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Documents: docs})
}
