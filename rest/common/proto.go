package common

import "github.com/ValentinKolb/jstore/lib/store"

// Status values of StatusResponse
const (
	StatusFound    = "found"
	StatusNotFound = "not found"
	StatusCreated  = "created"
	StatusUpdated  = "updated"
	StatusDeleted  = "deleted"
	StatusOpened   = "opened"
	StatusClosed   = "closed"
	StatusFlushed  = "flushed"
	StatusSynced   = "synced"
	StatusFailed   = "failed"
)

// StatusResponse is the body of every REST response that carries no data.
// Code is set on failures so clients can restore the error code.
type StatusResponse struct {
	Source  string        `json:"source"`
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Code    store.RetCode `json:"code,omitempty"`
}

// Err converts a failed response into a *store.Error
func (r StatusResponse) Err() error {
	code := r.Code
	if code == store.RetCSuccess {
		if r.Status == StatusNotFound {
			code = store.RetCNotFound
		} else {
			code = store.RetCInternalError
		}
	}
	msg := r.Message
	if msg == "" {
		msg = r.Status
	}
	return store.NewError(code, msg)
}

// Content types used by the REST layer
const (
	ContentTypeJSON       = "application/json"
	ContentTypeMergePatch = "application/merge-patch+json"
	ContentTypeJSONPatch  = "application/json-patch+json"
)
