package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/jstore/lib/registry"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/ValentinKolb/jstore/rest/common"
	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	t.Cleanup(reg.Shutdown)

	ts := httptest.NewServer(NewServer(reg, common.ServerConfig{}).Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

// do sends a request and returns the status code and the body
func do(t *testing.T, ts *httptest.Server, method, path, contentType, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body failed: %v", err)
	}
	return resp.StatusCode, string(data)
}

func decodeStatus(t *testing.T, body string) common.StatusResponse {
	t.Helper()
	var st common.StatusResponse
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("expected a status response, got %q: %v", body, err)
	}
	return st
}

func TestSourceLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	code, body := do(t, ts, http.MethodPost, "/orders", "", "")
	if code != http.StatusCreated || decodeStatus(t, body).Status != common.StatusCreated {
		t.Fatalf("create = %d %s", code, body)
	}
	code, body = do(t, ts, http.MethodPost, "/orders", "", "")
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusFound {
		t.Errorf("second create = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodGet, "/", "", "")
	if code != http.StatusOK {
		t.Fatalf("list = %d %s", code, body)
	}
	var list map[string][]string
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("bad list body %q: %v", body, err)
	}
	if diff := cmp.Diff([]string{"orders"}, list["sources"]); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	if code, body = do(t, ts, http.MethodPost, "/orders/_close", "", ""); code != http.StatusOK {
		t.Errorf("close = %d %s", code, body)
	}
	if code, body = do(t, ts, http.MethodGet, "/orders/1", "", ""); code != http.StatusNotFound {
		t.Errorf("reading a closed source = %d %s", code, body)
	}
	if code, body = do(t, ts, http.MethodPost, "/orders/_open", "", ""); code != http.StatusOK {
		t.Errorf("open = %d %s", code, body)
	}

	if code, _ = do(t, ts, http.MethodDelete, "/orders", "", ""); code != http.StatusOK {
		t.Errorf("remove = %d", code)
	}
	if code, _ = do(t, ts, http.MethodDelete, "/orders", "", ""); code != http.StatusNotFound {
		t.Errorf("second remove = %d", code)
	}
	if code, _ = do(t, ts, http.MethodPost, "/orders/_open", "", ""); code != http.StatusNotFound {
		t.Errorf("opening a removed source = %d", code)
	}
	if code, _ = do(t, ts, http.MethodGet, "/orders", "", ""); code != http.StatusNotFound {
		t.Errorf("getting a removed source = %d", code)
	}
}

func TestDocuments(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, ts, http.MethodPost, "/orders", "", "")

	code, body := do(t, ts, http.MethodPost, "/orders/1", "application/json", `{"item":"tea","qty":1}`)
	if code != http.StatusCreated {
		t.Fatalf("post = %d %s", code, body)
	}
	code, body = do(t, ts, http.MethodPost, "/orders/1", "application/json", `{"item":"tea","qty":2}`)
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusUpdated {
		t.Errorf("second post = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodGet, "/orders/1", "", "")
	if code != http.StatusOK || !store.Document(body).Equal(store.Document(`{"item":"tea","qty":2}`)) {
		t.Errorf("get = %d %s", code, body)
	}

	// put returns the replaced document
	code, body = do(t, ts, http.MethodPut, "/orders/1", "application/json", `{"item":"coffee"}`)
	if code != http.StatusOK || !store.Document(strings.TrimSpace(body)).Equal(store.Document(`{"item":"tea","qty":2}`)) {
		t.Errorf("put = %d %s", code, body)
	}
	code, body = do(t, ts, http.MethodPut, "/orders/2", "application/json", `{"item":"milk"}`)
	if code != http.StatusOK || strings.TrimSpace(body) != "null" {
		t.Errorf("put on a new key = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodGet, "/orders?keys=1,%202,3", "", "")
	if code != http.StatusOK {
		t.Fatalf("multi get = %d %s", code, body)
	}
	var multi map[string]map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &multi); err != nil {
		t.Fatalf("bad multi get body %q: %v", body, err)
	}
	if len(multi["orders"]) != 2 {
		t.Errorf("expected keys 1 and 2, got %s", body)
	}

	code, body = do(t, ts, http.MethodDelete, "/orders/2", "", "")
	if code != http.StatusOK || !store.Document(body).Equal(store.Document(`{"item":"milk"}`)) {
		t.Errorf("delete = %d %s", code, body)
	}
	if code, _ = do(t, ts, http.MethodDelete, "/orders/2", "", ""); code != http.StatusNotFound {
		t.Errorf("second delete = %d", code)
	}
	if code, _ = do(t, ts, http.MethodGet, "/orders/2", "", ""); code != http.StatusNotFound {
		t.Errorf("get after delete = %d", code)
	}
}

func TestDocumentErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, ts, http.MethodPost, "/orders", "", "")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid key", http.MethodGet, "/orders/abc", "", http.StatusBadRequest},
		{"invalid document", http.MethodPut, "/orders/1", `{"broken":`, http.StatusBadRequest},
		{"unknown source", http.MethodGet, "/unknown/1", "", http.StatusNotFound},
		{"invalid source name", http.MethodPost, "/.hidden", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, ts, tt.method, tt.path, "application/json", tt.body)
			if code != tt.want {
				t.Errorf("expected %d, got %d %s", tt.want, code, body)
			}
		})
	}
}

func TestPatch(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, ts, http.MethodPost, "/orders", "", "")
	do(t, ts, http.MethodPut, "/orders/1", "application/json", `{"item":"tea","qty":1}`)

	code, body := do(t, ts, http.MethodPatch, "/orders/1", "application/merge-patch+json", `{"qty":3,"item":null}`)
	if code != http.StatusOK || !store.Document(body).Equal(store.Document(`{"qty":3}`)) {
		t.Errorf("merge patch = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodPatch, "/orders/1", common.ContentTypeJSONPatch,
		`[{"op":"add","path":"/note","value":"hot"}]`)
	if code != http.StatusOK || !store.Document(body).Equal(store.Document(`{"qty":3,"note":"hot"}`)) {
		t.Errorf("json patch = %d %s", code, body)
	}

	if code, body = do(t, ts, http.MethodPatch, "/orders/1", common.ContentTypeJSONPatch, `{"op":"add"}`); code != http.StatusBadRequest {
		t.Errorf("invalid json patch = %d %s", code, body)
	}
}

func TestSidecars(t *testing.T) {
	ts, _ := newTestServer(t)

	schema := `{"type":"object"}`
	code, body := do(t, ts, http.MethodPut, "/orders", "application/json", schema)
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusUpdated {
		t.Fatalf("put schema = %d %s", code, body)
	}
	if code, body = do(t, ts, http.MethodGet, "/orders", "", ""); code != http.StatusOK || body != schema {
		t.Errorf("get source = %d %s", code, body)
	}
	if code, body = do(t, ts, http.MethodGet, "/orders/_schema", "", ""); code != http.StatusOK || body != schema {
		t.Errorf("get schema = %d %s", code, body)
	}
	if code, body = do(t, ts, http.MethodDelete, "/orders/_schema", "", ""); code != http.StatusOK || body != schema {
		t.Errorf("remove schema = %d %s", code, body)
	}
	code, body = do(t, ts, http.MethodGet, "/orders", "", "")
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusFound {
		t.Errorf("get source without schema = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodPut, "/orders/_config", "application/json", `{"batchSize": 10}`)
	if code != http.StatusOK {
		t.Fatalf("put config = %d %s", code, body)
	}
	var cfg store.StoreConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		t.Fatalf("bad config body %q: %v", body, err)
	}
	if cfg.BatchSize != 10 || cfg.ValueCodec != store.DefaultValueCodec {
		t.Errorf("expected a resolved config, got %+v", cfg)
	}
	if code, _ = do(t, ts, http.MethodPut, "/orders/_config", "application/json", `{"keyCodec":"nope"}`); code != http.StatusBadRequest {
		t.Errorf("invalid config = %d", code)
	}
	if code, _ = do(t, ts, http.MethodGet, "/orders/_config", "", ""); code != http.StatusOK {
		t.Errorf("get config = %d", code)
	}
	if code, _ = do(t, ts, http.MethodDelete, "/orders/_config", "", ""); code != http.StatusOK {
		t.Errorf("remove config = %d", code)
	}
	if code, _ = do(t, ts, http.MethodGet, "/orders/_config", "", ""); code != http.StatusNotFound {
		t.Errorf("get removed config = %d", code)
	}
}

func TestDurabilityAndInfo(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, ts, http.MethodPost, "/orders", "", "")
	do(t, ts, http.MethodPut, "/orders/1", "application/json", `{}`)

	code, body := do(t, ts, http.MethodPost, "/orders/_flush", "", "")
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusFlushed {
		t.Errorf("flush = %d %s", code, body)
	}
	code, body = do(t, ts, http.MethodPost, "/orders/_sync", "", "")
	if code != http.StatusOK || decodeStatus(t, body).Status != common.StatusSynced {
		t.Errorf("sync = %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodGet, "/orders/_info", "", "")
	if code != http.StatusOK {
		t.Fatalf("info = %d %s", code, body)
	}
	var info store.StoreInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		t.Fatalf("bad info body %q: %v", body, err)
	}
	if !info.Open || info.Puts != 1 || info.Persists != 1 || info.Syncs != 1 {
		t.Errorf("unexpected info %+v", info)
	}

	code, body = do(t, ts, http.MethodGet, "/metrics", "", "")
	if code != http.StatusOK || !strings.Contains(body, "jstore_store_creates_total 1") {
		t.Errorf("metrics = %d %s", code, body)
	}
}

func TestBodyLimit(t *testing.T) {
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	defer reg.Shutdown()
	if _, err := reg.Create("orders"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	handler := NewServer(reg, common.ServerConfig{MaxBodyBytes: 8}).Handler()
	req := httptest.NewRequest(http.MethodPut, "/orders/1", strings.NewReader(`{"too":"large for the limit"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an oversized body, got %d %s", rec.Code, rec.Body.String())
	}
}
