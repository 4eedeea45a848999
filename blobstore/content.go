package blobstore

import (
	"path"
	"strings"
)

// contentTypes maps file extensions of recordings and exports to MIME types.
var contentTypes = map[string]string{
	".csv":   "text/csv",
	".jsonl": "application/x-ndjson",
	".json":  "application/json",
	".yaml":  "application/yaml",
	".yml":   "application/yaml",
	".gz":    "application/gzip",
	".zst":   "application/zstd",
	".lz4":   "application/x-lz4",
}

// ContentType returns the MIME type stored with an uploaded object. The
// outermost extension decides, so "run.csv.zst" is application/zstd.
// Recordings and unknown names are application/octet-stream.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
