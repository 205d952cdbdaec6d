// internal/dispatch/token.go
package dispatch

import (
	"fmt"
	"strings"

	pusherrors "jobalert-workers/internal/common/errors"
)

// tokenLength is the APNs device token length: 32 bytes hex-encoded.
const tokenLength = 64

// ValidateToken rejects tokens that could never be delivered to, before
// any provider call is made. A rejection here consumes no rate budget
// and never deactivates the device: the token was never valid.
func ValidateToken(token string) error {
	if token == "" {
		return pusherrors.NewInvalidTokenError("token is empty")
	}
	if len(token) != tokenLength {
		return pusherrors.NewInvalidTokenError(
			fmt.Sprintf("token length %d, expected %d", len(token), tokenLength))
	}
	if !isHex(token) {
		return pusherrors.NewInvalidTokenError("token contains non-hex characters")
	}
	if blockSize, ok := repetitiveBlock(token); ok {
		return pusherrors.NewInvalidTokenError(
			fmt.Sprintf("token is a repeated %d-character block", blockSize))
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// repetitiveBlock detects simulator/placeholder tokens: a single 2-, 4-
// or 8-character block tiling the whole token (e.g. "abcd" repeated 16
// times). Real tokens are random enough that this never fires.
func repetitiveBlock(token string) (int, bool) {
	for _, size := range []int{2, 4, 8} {
		if len(token)%size != 0 {
			continue
		}
		block := token[:size]
		if strings.Repeat(block, len(token)/size) == token {
			return size, true
		}
	}
	return 0, false
}
