package cachedstore

import "strings"

// DefaultPredicate classifies keys the way the zarr-like array format's
// backend does: chunk data and array/attribute descriptors are
// cache-worthy; group descriptors are not, since they're rarely re-read and
// their caching value is low.
func DefaultPredicate(key string) bool {
	return !strings.HasSuffix(key, ".zgroup") || strings.Contains(key, ".zarray") || strings.Contains(key, ".zattrs")
}
