// Package fingerprint derives stable content identifiers for feed entries.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
)

// Hash returns a 16 hex character identifier for the given canonical link.
//
// The input is hashed as-is: callers pick the most canonical identifier they
// have (link, then feed GUID, then empty string). The same link always yields
// the same fingerprint, and 64 bits is plenty against accidental collision.
func Hash(link string) string {
	sum := md5.Sum([]byte(link))
	return hex.EncodeToString(sum[:])[:16]
}
