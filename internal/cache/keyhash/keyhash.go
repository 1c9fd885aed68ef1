// Package keyhash derives the stable, non-cryptographic hash the disk tier
// uses to name its on-disk files. A stable hash is adequate here because the
// disk tier's metadata record carries the original key and is checked on
// every lookup to rule out collisions; cryptographic strength buys nothing.
package keyhash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hex returns the 64-bit xxhash of key, formatted as 16 lowercase hex
// digits, suitable for use as a filename stem.
func Hex(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
