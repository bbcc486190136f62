package primitives

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Fingerprint computes a short deterministic digest of a JSON-serializable value.
// Equal states produce equal fingerprints, which makes histories easy to diff.
func Fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Fallback for values encoding/json cannot represent (funcs, chans).
		return fmt.Sprintf("unhashable-%T", v)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}
