// Package home manages the on-disk layout below the home directory:
//
//	homeDir/
//	  <source>/            one directory per source
//	    config.json        resolved store configuration (sidecar)
//	    schema.json        caller supplied schema (sidecar, optional)
//	    ...                engine files
//	  .trash-<uuid>/       a removed source waiting to be purged
//
// Errors are *store.Error values with RetCIO (disk failures) or
// RetCInvalidOperation (invalid source names). A missing file or directory is
// reported as "not found" through the boolean results, never as an error.
//
// Sidecar writes go to a uniquely named temp file that is fsynced and renamed over
// the target, so concurrent readers never see a partially written file. Removal of a
// source is two-phase: Trash renames the directory into a trash entry (atomic), Purge
// deletes it. PurgeTrash cleans up entries left behind by a crash between the phases.
package home
