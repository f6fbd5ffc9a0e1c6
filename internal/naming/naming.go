// Package naming derives deterministic resource names.
package naming

import (
	"crypto/md5"
	"encoding/hex"
)

// HashSuffixed returns the label suffixed with the lowercase hex MD5 digest
// of the label itself. The result is a pure function of the input, so
// repeated synthesis always yields the same name, while the digest keeps the
// name from colliding with unrelated stacks that use the bare label.
// Collision resistance is not security-relevant here; the digest only
// namespaces.
func HashSuffixed(label string) string {
	sum := md5.Sum([]byte(label))
	return label + "-" + hex.EncodeToString(sum[:])
}
