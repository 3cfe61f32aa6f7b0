// Package client is the HTTP client of the jstore REST api.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/ValentinKolb/jstore/rest/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rest")

// Client talks to a jstore server over its REST api. Requests are spread over
// the configured endpoints round-robin, a request that fails on the transport
// level is retried on the next endpoint.
type Client struct {
	endpoints  []*url.URL
	http       *http.Client
	counter    uint32
	retryCount int
}

// NewClient creates a client for the endpoints of config.
func NewClient(config common.ClientConfig) (*Client, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoint configured")
	}

	// Parse each server URL
	endpoints := make([]*url.URL, 0, len(config.Endpoints))
	for _, endpoint := range config.Endpoints {
		endpoint = strings.TrimSpace(endpoint)
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		endpoints = append(endpoints, parsed)
	}

	retries := config.RetryCount
	if retries < 1 {
		retries = 1
	}

	return &Client{
		endpoints: endpoints,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecond) * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryCount: retries,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

type response struct {
	code int
	body []byte
}

// ok reports whether the response has a 2xx status
func (r response) ok() bool {
	return r.code >= 200 && r.code < 300
}

// err converts a failed response into a *store.Error
func (r response) err() error {
	var status common.StatusResponse
	if err := json.Unmarshal(r.body, &status); err != nil || status.Status == "" {
		if r.code == http.StatusNotFound {
			return store.NewError(store.RetCNotFound, http.StatusText(r.code))
		}
		return store.NewError(store.RetCInternalError, fmt.Sprintf("http error %d: %s", r.code, bytes.TrimSpace(r.body)))
	}
	return status.Err()
}

// missingKey reports a 404 without error code, the server sends it for keys
// that do not exist in an open source
func (r response) missingKey() bool {
	if r.code != http.StatusNotFound {
		return false
	}
	var status common.StatusResponse
	return json.Unmarshal(r.body, &status) == nil && status.Code == store.RetCSuccess
}

// path joins escaped path segments
func path(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(s))
	}
	return sb.String()
}

// do sends a request, retrying transport errors on the next endpoint
func (c *Client) do(method, p, contentType string, body []byte) (response, error) {
	var lastErr error
	for i := 0; i < c.retryCount; i++ {
		// Select the next server via round-robin
		idx := atomic.AddUint32(&c.counter, 1) % uint32(len(c.endpoints))
		requestURL := c.endpoints[idx].String() + p

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequest(method, requestURL, reader)
		if err != nil {
			return response{}, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			Logger.Debugf("%s %s failed (attempt %d): %v", method, requestURL, i+1, err)
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			Logger.Errorf("Failed to close response body: %v", closeErr)
		}
		if err != nil {
			lastErr = err
			continue
		}
		return response{code: resp.StatusCode, body: data}, nil
	}
	return response{}, store.WrapError(store.RetCIO, lastErr, "request %s %s failed after %d attempts", method, p, c.retryCount)
}

// found handles requests whose 404 means "unknown" rather than failure
func (c *Client) found(method, p string) (bool, error) {
	resp, err := c.do(method, p, "", nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.ok():
		return true, nil
	case resp.code == http.StatusNotFound:
		return false, nil
	default:
		return false, resp.err()
	}
}

// sidecar reads or removes a sidecar, found is false if it does not exist
func (c *Client) sidecar(method, p string) ([]byte, bool, error) {
	resp, err := c.do(method, p, "", nil)
	if err != nil {
		return nil, false, err
	}
	switch {
	case resp.ok():
		return resp.body, true, nil
	case resp.code == http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, resp.err()
	}
}

// --------------------------------------------------------------------------
// Sources
// --------------------------------------------------------------------------

// Sources lists the registered sources.
func (c *Client) Sources() ([]string, error) {
	resp, err := c.do(http.MethodGet, "/", "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.err()
	}
	var list struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return nil, store.WrapError(store.RetCCodec, err, "invalid source list")
	}
	return list.Sources, nil
}

// Create creates source and reports whether it was newly created.
func (c *Client) Create(source string) (bool, error) {
	resp, err := c.do(http.MethodPost, path(source), "", nil)
	if err != nil {
		return false, err
	}
	if !resp.ok() {
		return false, resp.err()
	}
	return resp.code == http.StatusCreated, nil
}

// Open opens source, it returns false if the source is unknown.
func (c *Client) Open(source string) (bool, error) {
	return c.found(http.MethodPost, path(source, "_open"))
}

// CloseSource closes source, it returns false if the source is unknown.
func (c *Client) CloseSource(source string) (bool, error) {
	return c.found(http.MethodPost, path(source, "_close"))
}

// Remove deletes source irreversibly, it returns false if the source is unknown.
func (c *Client) Remove(source string) (bool, error) {
	return c.found(http.MethodDelete, path(source))
}

// Flush persists the pending writes of source.
func (c *Client) Flush(source string) error {
	_, err := c.expectOK(http.MethodPost, path(source, "_flush"), "", nil)
	return err
}

// Sync makes all writes to source durable.
func (c *Client) Sync(source string) error {
	_, err := c.expectOK(http.MethodPost, path(source, "_sync"), "", nil)
	return err
}

// Info returns the statistics of the handle of source.
func (c *Client) Info(source string) (store.StoreInfo, error) {
	var info store.StoreInfo
	resp, err := c.expectOK(http.MethodGet, path(source, "_info"), "", nil)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.body, &info); err != nil {
		return info, store.WrapError(store.RetCCodec, err, "invalid info response")
	}
	return info, nil
}

// Metrics returns the server metrics in Prometheus text format.
func (c *Client) Metrics() (string, error) {
	resp, err := c.expectOK(http.MethodGet, "/metrics", "", nil)
	if err != nil {
		return "", err
	}
	return string(resp.body), nil
}

func (c *Client) expectOK(method, p, contentType string, body []byte) (response, error) {
	resp, err := c.do(method, p, contentType, body)
	if err != nil {
		return resp, err
	}
	if !resp.ok() {
		return resp, resp.err()
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// Sidecars
// --------------------------------------------------------------------------

// GetSchema returns the schema of source.
func (c *Client) GetSchema(source string) ([]byte, bool, error) {
	return c.sidecar(http.MethodGet, path(source, "_schema"))
}

// PutSchema creates source if needed and replaces its schema.
func (c *Client) PutSchema(source string, schema []byte) error {
	_, err := c.expectOK(http.MethodPut, path(source), common.ContentTypeJSON, schema)
	return err
}

// RemoveSchema deletes the schema of source and returns it.
func (c *Client) RemoveSchema(source string) ([]byte, bool, error) {
	return c.sidecar(http.MethodDelete, path(source, "_schema"))
}

// GetConfig returns the config text of source.
func (c *Client) GetConfig(source string) ([]byte, bool, error) {
	return c.sidecar(http.MethodGet, path(source, "_config"))
}

// PutConfig replaces the config of source and returns the resolved config.
func (c *Client) PutConfig(source string, config []byte) (store.StoreConfig, error) {
	resp, err := c.expectOK(http.MethodPut, path(source, "_config"), common.ContentTypeJSON, config)
	if err != nil {
		return store.StoreConfig{}, err
	}
	return store.ParseConfig(resp.body)
}

// RemoveConfig deletes the config of source and returns it.
func (c *Client) RemoveConfig(source string) ([]byte, bool, error) {
	return c.sidecar(http.MethodDelete, path(source, "_config"))
}

// --------------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------------

// Get returns the document under key, ok is false if it does not exist.
func (c *Client) Get(source, key string) (store.Document, bool, error) {
	resp, err := c.do(http.MethodGet, path(source, key), "", nil)
	if err != nil {
		return nil, false, err
	}
	if resp.ok() {
		return store.Document(resp.body), true, nil
	}
	if resp.missingKey() {
		return nil, false, nil
	}
	return nil, false, resp.err()
}

// GetMany returns the documents of all keys that exist in source.
func (c *Client) GetMany(source string, keys []string) (map[string]store.Document, error) {
	p := path(source) + "?keys=" + url.QueryEscape(strings.Join(keys, ","))
	resp, err := c.expectOK(http.MethodGet, p, "", nil)
	if err != nil {
		return nil, err
	}
	var result map[string]map[string]store.Document
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, store.WrapError(store.RetCCodec, err, "invalid documents response")
	}
	if docs := result[source]; docs != nil {
		return docs, nil
	}
	return map[string]store.Document{}, nil
}

// Put stores doc under key and returns the replaced document.
func (c *Client) Put(source, key string, doc store.Document) (store.Document, bool, error) {
	resp, err := c.expectOK(http.MethodPut, path(source, key), common.ContentTypeJSON, doc)
	if err != nil {
		return nil, false, err
	}
	prev := bytes.TrimSpace(resp.body)
	if bytes.Equal(prev, []byte("null")) {
		return nil, false, nil
	}
	return store.Document(prev), true, nil
}

// Delete removes key and returns the removed document.
func (c *Client) Delete(source, key string) (store.Document, bool, error) {
	resp, err := c.do(http.MethodDelete, path(source, key), "", nil)
	if err != nil {
		return nil, false, err
	}
	if resp.ok() {
		return store.Document(resp.body), true, nil
	}
	if resp.missingKey() {
		return nil, false, nil
	}
	return nil, false, resp.err()
}

// MergePatch applies an RFC 7386 merge patch to the document under key.
func (c *Client) MergePatch(source, key string, patch []byte) (store.Document, error) {
	return c.patch(source, key, common.ContentTypeMergePatch, patch)
}

// JSONPatch applies an RFC 6902 JSON patch to the document under key.
func (c *Client) JSONPatch(source, key string, patch []byte) (store.Document, error) {
	return c.patch(source, key, common.ContentTypeJSONPatch, patch)
}

func (c *Client) patch(source, key, contentType string, patch []byte) (store.Document, error) {
	resp, err := c.expectOK(http.MethodPatch, path(source, key), contentType, patch)
	if err != nil {
		return nil, err
	}
	return store.Document(resp.body), nil
}
