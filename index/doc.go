// Package index provides the file-backed implementation of the
// core.ResultIndex contract: a persistent map from canonical parameter keys
// to result directories.
//
// An Index lives in memory and is rooted at a directory on disk. Put records
// a configuration's directory under its canonical key, Get resolves
// parameters back to an absolute directory (distinguishing never-indexed
// from indexed-but-deleted), and Persist writes the whole thing as a
// versioned JSON artifact next to the result directories:
//
//	idx := index.New("/data/sweeps/run-2024-06")
//	if err := idx.Put(entry, "run0", "/data/sweeps/run-2024-06/run0"); err != nil { ... }
//	if err := idx.Persist(); err != nil { ... }
//
//	idx, err := index.Load("/data/sweeps/run-2024-06")
//	dir, err := idx.Get(map[string]any{"energy": 18600.0, "pitch": 88.9})
//
// The artifact carries a major.minor schema version. Readers accept
// artifacts written by the same or an older major version, defaulting any
// fields the writer did not know about; a newer major version is rejected
// rather than misread. Directories under the root are stored relative to it,
// so an archived result tree can be moved or copied wholesale and its index
// keeps working.
//
// GetNearest supports exploratory lookups by snapping numeric parameters
// onto the closest recorded axis value before the exact match. Merge folds a
// second index into this one, following the same duplicate policy as Put.
package index
