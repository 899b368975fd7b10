// Package md5 provides the content fingerprint used for change detection.
package md5

import (
	"crypto/md5" //nolint:gosec // change-detection fingerprint, not a security boundary
	"encoding/hex"
)

// Digest returns the hex-encoded MD5 digest of content. It is the sole
// change-detection signal for branch READMEs and project blocks, so it must
// stay stable across releases.
func Digest(content string) string {
	sum := md5.Sum([]byte(content)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
