// Package store defines the Store Handle contract of a JSON document store and the
// types shared by every layer above the engine.
//
// The package focuses on:
//   - A unified interface (IStore) for document operations on one source
//   - The per-source configuration (StoreConfig) with default resolution
//   - Unified, code based error handling
//
// Key Components:
//
//   - IStore Interface: typed CRUD on string keys and Documents, a restartable
//     Iterate, the durability operations Persist and Sync, and the open/close
//     lifecycle of a handle. Operations on a closed handle fail with RetCClosed.
//
//   - Document: JSON text with structural equality (Equal), RFC 7386 merge patches
//     (MergePatch) and RFC 6902 JSON patches (ApplyPatch), both backed by
//     github.com/evanphx/json-patch.
//
//   - StoreConfig: the content of a source's config.json. Resolve fills unset
//     (zero) fields with the defaults and is idempotent. Validate rejects non-positive
//     numbers and identifiers missing from the codec and segment strategy tables.
//
//   - Error System: *Error carries a RetCode, a message and an optional cause.
//     errors.Is(err, store.ErrNotFound) matches any error with the same code,
//     CodeOf extracts the code from an error chain.
//
// Error Codes:
//
//	RetCNotFound      source or key absent where presence was assumed
//	RetCCodec         malformed payload or invalid document text
//	RetCKeyFormat     key unparsable under the configured key codec
//	RetCConfig        invalid config text or unsupported identifier
//	RetCIO            disk failure
//	RetCClosed        operation on a closed handle
//
// Implementations:
//
//	The lstore package implements IStore on top of a db.KVDB engine and the codecs of
//	the codec package.
package store
