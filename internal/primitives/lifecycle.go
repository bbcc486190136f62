package primitives

import (
	"strings"

	"github.com/google/uuid"
)

// Reserved action types dispatched by the store itself. The random suffix
// keeps them from colliding with any literal chosen by application code.
var (
	ActionInit    = "@@storex/INIT." + randomSuffix()
	ActionReplace = "@@storex/REPLACE." + randomSuffix()
)

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// IsLifecycleType reports whether t is one of the reserved action types.
func IsLifecycleType(t any) bool {
	s, ok := t.(string)
	return ok && (s == ActionInit || s == ActionReplace)
}
