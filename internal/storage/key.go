package storage

import "regexp"

// KeyType enumerates the object-key namespaces used throughout the
// pipeline (spec §4.1).
type KeyType string

const (
	KeyTypeSource  KeyType = "source"
	KeyTypeZip     KeyType = "zip"
	KeyTypeFiles   KeyType = "files"
	KeyTypeGxFiles KeyType = "gxFiles"
)

var unsafeKeyChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeName replaces every character outside [A-Za-z0-9._-] with "_".
func SanitizeName(name string) string {
	return unsafeKeyChar.ReplaceAllString(name, "_")
}

// ConstructKey builds the deterministic object key for a file (spec §4.1):
// "{bucket}/{type}/{jobId}/{safeName}" when gxBucketID is set, or
// "bulk/{type}/{jobId}/{safeName}" for bulk jobs (gxBucketID == nil). The
// result contains only [A-Za-z0-9._/-] as long as the bucket id and job id
// do (spec §8). It is not injective in fileName: names that differ only in
// characters SanitizeName replaces (e.g. "a b.pdf" and "a_b.pdf") produce
// the same key.
func ConstructKey(fileName string, gxBucketID *string, jobID string, keyType KeyType) string {
	prefix := "bulk"
	if gxBucketID != nil {
		prefix = *gxBucketID
	}
	return prefix + "/" + string(keyType) + "/" + jobID + "/" + SanitizeName(fileName)
}
