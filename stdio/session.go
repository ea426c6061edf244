package stdio

import (
	"crypto/rand"
	"fmt"
)

// newSessionID returns an opaque "stdio-NNNN" identifier, NNNN a random
// 4-digit number, per spec.md §3. A 4-digit id has no business pulling in
// a UUID library, so this uses crypto/rand directly.
func newSessionID() string {
	var b [2]byte
	_, _ = rand.Read(b[:])
	n := (int(b[0])<<8 | int(b[1])) % 10000
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("stdio-%04d", n)
}
