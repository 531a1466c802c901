// Package plan owns the on-disk resource plan store.
//
// A plan is a named, flat set of string constants. The whole catalog of
// plans lives in one YAML file: a top-level mapping of plan name to a
// mapping of constant key to constant value. The store loads the file
// lazily on first access and rewrites it in full after every mutation.
//
// # Persistence
//
// Writes go to a temporary file in the same directory followed by a
// rename, so a crash mid-write never leaves a truncated catalog behind.
// The file is assumed to have a single writer; concurrent external
// writers can race a persist and silently lose updates. Advisory locking
// is deliberately out of scope.
//
// Plan names are normalized to Unicode NFC before use as catalog keys, so
// a name typed with combining characters resolves to the same plan as its
// precomposed form.
package plan
