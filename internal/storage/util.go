package storage

import (
	"path"
	"strings"
)

// LocalPath returns the filesystem path behind key when backend stores files
// locally, or "" for object stores. Exporters that need a real file, such as
// sqlite, write straight to it when available.
func LocalPath(backend Backend, key string) string {
	switch b := backend.(type) {
	case *LocalBackend:
		return b.URI(key)
	case *ResilientBackend:
		return LocalPath(b.Unwrap(), key)
	default:
		return ""
	}
}

// JoinKey joins object key segments with "/", dropping empty ones
func JoinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return path.Join(kept...)
}
