package anchor

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// MinIterations is the PBKDF2 safety floor. Counts below it are rejected as
// configuration errors; there is no hidden default, callers always state the
// iteration count explicitly.
const MinIterations = 100000

// MinSaltSize is the minimum PBKDF2 salt length in bytes.
const MinSaltSize = 8

// DeriveMaster stretches an operator secret into the 32-byte master anchor
// using PBKDF2-HMAC-SHA256.
//
// The returned anchor is the root of the entire derivation hierarchy. Callers
// own its lifecycle and MUST wipe it with Zero once derivations are done;
// prefer WithMaster, which guarantees the wipe.
func DeriveMaster(secret string, salt []byte, iterations int) (Anchor, error) {
	if secret == "" {
		return Anchor{}, newError(KindConfig, "LCM-ANCHOR-002", "master secret is empty")
	}
	if len(salt) < MinSaltSize {
		return Anchor{}, newError(KindConfig, "LCM-ANCHOR-003",
			fmt.Sprintf("salt must be at least %d bytes, got %d", MinSaltSize, len(salt)))
	}
	if iterations < MinIterations {
		return Anchor{}, newError(KindConfig, "LCM-ANCHOR-001",
			fmt.Sprintf("weak parameters: %d PBKDF2 iterations, floor is %d", iterations, MinIterations))
	}

	key := pbkdf2.Key([]byte(secret), salt, iterations, Size, sha256.New)
	a, err := FromBytes(key)
	// Wipe the intermediate buffer; the Anchor copy is the only live value.
	for i := range key {
		key[i] = 0
	}
	if err != nil {
		return Anchor{}, wrapError(KindInternal, "LCM-ANCHOR-090", "pbkdf2 output rejected", err)
	}
	return a, nil
}

// WithMaster derives the master anchor, passes it to fn, and wipes it when fn
// returns (normally or by panic). The pointer must not escape fn.
func WithMaster(secret string, salt []byte, iterations int, fn func(master *Anchor) error) error {
	m, err := DeriveMaster(secret, salt, iterations)
	if err != nil {
		return err
	}
	defer m.Zero()
	return fn(&m)
}
