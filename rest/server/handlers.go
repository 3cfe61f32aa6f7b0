package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ValentinKolb/jstore/lib/registry"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/ValentinKolb/jstore/rest/common"
)

// --------------------------------------------------------------------------
// Response helpers
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

// writeRaw writes JSON text that is already encoded (documents, sidecars)
func writeRaw(w http.ResponseWriter, code int, text []byte) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	w.WriteHeader(code)
	if _, err := w.Write(text); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

func writeStatus(w http.ResponseWriter, code int, source, status, message string) {
	writeJSON(w, code, common.StatusResponse{Source: source, Status: status, Message: message})
}

// httpStatus maps an error code to an HTTP status code
func httpStatus(code store.RetCode) int {
	switch code {
	case store.RetCNotFound:
		return http.StatusNotFound
	case store.RetCKeyFormat, store.RetCCodec, store.RetCConfig, store.RetCInvalidOperation:
		return http.StatusBadRequest
	case store.RetCClosed:
		return http.StatusConflict
	case store.RetCUnsupportedOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, source string, err error) {
	retCode := store.CodeOf(err)
	code := httpStatus(retCode)
	status := common.StatusFailed
	if code == http.StatusNotFound {
		status = common.StatusNotFound
	}
	if code >= http.StatusInternalServerError {
		Logger.Errorf("request on source %q failed: %v", source, err)
	}
	writeJSON(w, code, common.StatusResponse{Source: source, Status: status, Message: err.Error(), Code: retCode})
}

// readBody reads the request body, limited to the configured maximum size
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, err, "failed to read request body")
	}
	return body, nil
}

// --------------------------------------------------------------------------
// Registry wide
// --------------------------------------------------------------------------

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": s.registry.Sources()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.registry.WriteMetrics(w)
}

// --------------------------------------------------------------------------
// Sources
// --------------------------------------------------------------------------

// handleGetSource returns the schema (or the source status) or, with a keys
// query, the documents of the listed keys as {source: {key: doc}}
func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	if keys := parseKeys(r.URL.Query()["keys"]); len(keys) > 0 {
		docs, err := s.registry.GetDocuments(source, keys)
		if err != nil {
			writeError(w, source, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]map[string]store.Document{source: docs})
		return
	}

	known, err := s.registry.Knows(source)
	if err != nil {
		writeError(w, source, err)
		return
	}
	if !known {
		writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, "")
		return
	}
	schema, found, err := s.registry.GetSchema(source)
	if err != nil {
		writeError(w, source, err)
		return
	}
	if found {
		writeRaw(w, http.StatusOK, schema)
		return
	}
	writeStatus(w, http.StatusOK, source, common.StatusFound, "")
}

// parseKeys splits comma separated key lists and drops empty entries
func parseKeys(params []string) []string {
	var keys []string
	for _, param := range params {
		for _, k := range strings.Split(param, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// handlePutSource creates the source if needed and stores the body as its schema
func (s *Server) handlePutSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, source, err)
		return
	}
	if _, err := s.registry.Create(source); err != nil {
		writeError(w, source, err)
		return
	}
	if err := s.registry.PutSchema(source, body); err != nil {
		writeError(w, source, err)
		return
	}
	writeStatus(w, http.StatusOK, source, common.StatusUpdated, "schema added")
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if s.registry.Has(source) {
		writeStatus(w, http.StatusOK, source, common.StatusFound, "")
		return
	}
	if _, err := s.registry.Create(source); err != nil {
		writeError(w, source, err)
		return
	}
	writeStatus(w, http.StatusCreated, source, common.StatusCreated, "")
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	removed, err := s.registry.Remove(source)
	switch {
	case err != nil:
		writeError(w, source, err)
	case !removed:
		writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, "")
	default:
		writeStatus(w, http.StatusOK, source, common.StatusDeleted, "")
	}
}

// --------------------------------------------------------------------------
// Lifecycle and durability
// --------------------------------------------------------------------------

// lifecycle wraps registry operations that report whether the source was known
func (s *Server) lifecycle(op func(string) (bool, error), status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := r.PathValue("source")
		ok, err := op(source)
		switch {
		case err != nil:
			writeError(w, source, err)
		case !ok:
			writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, "")
		default:
			writeStatus(w, http.StatusOK, source, status, "")
		}
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(s.registry.Open, common.StatusOpened)(w, r)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(s.registry.Close, common.StatusClosed)(w, r)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if err := s.registry.Persist(source); err != nil {
		writeError(w, source, err)
		return
	}
	writeStatus(w, http.StatusOK, source, common.StatusFlushed, "")
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if err := s.registry.Sync(source); err != nil {
		writeError(w, source, err)
		return
	}
	writeStatus(w, http.StatusOK, source, common.StatusSynced, "")
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	info, err := s.registry.Info(source)
	if err != nil {
		writeError(w, source, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// --------------------------------------------------------------------------
// Sidecars
// --------------------------------------------------------------------------

// sidecarGet writes the sidecar text or a not found status
func sidecarGet(w http.ResponseWriter, source string, text []byte, found bool, err error) {
	switch {
	case err != nil:
		writeError(w, source, err)
	case !found:
		writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, "")
	default:
		writeRaw(w, http.StatusOK, text)
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	text, found, err := s.registry.GetConfig(source)
	sidecarGet(w, source, text, found, err)
}

func (s *Server) handleRemoveConfig(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	text, found, err := s.registry.RemoveConfig(source)
	sidecarGet(w, source, text, found, err)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, source, err)
		return
	}
	cfg, err := s.registry.PutConfig(source, body)
	if err != nil {
		writeError(w, source, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	text, found, err := s.registry.GetSchema(source)
	sidecarGet(w, source, text, found, err)
}

func (s *Server) handleRemoveSchema(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	text, found, err := s.registry.RemoveSchema(source)
	sidecarGet(w, source, text, found, err)
}

// --------------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------------

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	source, key := r.PathValue("source"), r.PathValue("key")
	doc, err := s.registry.GetDocument(source, key)
	switch {
	case errors.Is(err, store.ErrNotFound) && s.registry.Has(source):
		writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, key)
	case err != nil:
		writeError(w, source, err)
	default:
		writeRaw(w, http.StatusOK, doc)
	}
}

// readDocument reads and validates the request body as a document
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (store.Document, error) {
	body, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	return store.ParseDocument(body)
}

// handlePutDocument stores the body and returns the replaced document (null if none)
func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	source, key := r.PathValue("source"), r.PathValue("key")
	doc, err := s.readDocument(w, r)
	if err != nil {
		writeError(w, source, err)
		return
	}
	prev, _, err := s.registry.PutDocument(source, key, doc)
	if err != nil {
		writeError(w, source, err)
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

// handlePostDocument stores the body and reports whether it was created or updated
func (s *Server) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	source, key := r.PathValue("source"), r.PathValue("key")
	doc, err := s.readDocument(w, r)
	if err != nil {
		writeError(w, source, err)
		return
	}
	_, replaced, err := s.registry.PutDocument(source, key, doc)
	if err != nil {
		writeError(w, source, err)
		return
	}
	if replaced {
		writeStatus(w, http.StatusOK, source, common.StatusUpdated, key)
		return
	}
	writeStatus(w, http.StatusCreated, source, common.StatusCreated, key)
}

// handleDeleteDocument removes the document and returns it
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	source, key := r.PathValue("source"), r.PathValue("key")
	prev, loaded, err := s.registry.DeleteDocument(source, key)
	switch {
	case err != nil:
		writeError(w, source, err)
	case !loaded:
		writeStatus(w, http.StatusNotFound, source, common.StatusNotFound, key)
	default:
		writeRaw(w, http.StatusOK, prev)
	}
}

// handlePatchDocument applies a merge patch, or a JSON patch when the request
// is sent as application/json-patch+json, and returns the patched document
func (s *Server) handlePatchDocument(w http.ResponseWriter, r *http.Request) {
	source, key := r.PathValue("source"), r.PathValue("key")
	body, err := s.readBody(w, r)
	if err != nil {
		writeError(w, source, err)
		return
	}

	kind := registry.MergePatch
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == common.ContentTypeJSONPatch {
		kind = registry.JSONPatch
	}
	patched, err := s.registry.PatchDocument(source, key, body, kind)
	if err != nil {
		writeError(w, source, err)
		return
	}
	writeRaw(w, http.StatusOK, patched)
}
