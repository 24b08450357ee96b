// internal/conductor/session.go
package conductor

import (
	"fmt"
	"hash/fnv"
)

// SessionID derives the session used when a caller sends none. The same
// user and query always land in the same session_NNNN bucket.
func SessionID(userID, query string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + query))
	return fmt.Sprintf("session_%04d", h.Sum32()%10000)
}
