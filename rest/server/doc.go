// Package server exposes a registry.Registry over HTTP.
//
// Routes:
//
//	GET    /                        registered sources
//	GET    /metrics                 Prometheus metrics of the registry
//	GET    /{source}[?keys=1,2]     schema or status, or the documents of the listed keys
//	PUT    /{source}                create the source and store the body as schema
//	POST   /{source}                create the source
//	DELETE /{source}                remove the source
//	POST   /{source}/_open|_close   lifecycle
//	POST   /{source}/_flush|_sync   durability
//	GET    /{source}/_info          handle statistics
//	*      /{source}/_config        config sidecar (GET, PUT, DELETE)
//	*      /{source}/_schema        schema sidecar (GET, DELETE)
//	*      /{source}/{key}          documents (GET, PUT, POST, DELETE, PATCH)
//
// Responses without data are common.StatusResponse bodies. Failures carry the
// store.RetCode of the error, NotFound maps to 404, malformed input to 400, a
// closed handle to 409 and disk failures to 500.
package server
