package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// IDGenerator returns a fresh human-facing order reference.
type IDGenerator func() string

// NewIDGenerator returns references of the form <prefix>-<n> where n has
// exactly digits digits. Uniqueness is enforced by the store; callers retry
// on ErrDuplicateOrderID.
func NewIDGenerator(prefix string, digits int) IDGenerator {
	if digits < 1 {
		digits = 1
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	if digits == 1 {
		low, span = big.NewInt(0), big.NewInt(10)
	}

	return func() string {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			panic(fmt.Sprintf("read random order id: %v", err))
		}
		return prefix + "-" + n.Add(n, low).String()
	}
}

// IsReference reports whether id looks like an order reference rather than a
// storage id.
func IsReference(prefix, id string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
