package gate

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Allowlist is the set of accepted shared secrets. Several secrets are valid at the
// same time. Plaintext entries match exactly with no normalization; entries that look
// like bcrypt hashes are checked with bcrypt instead.
type Allowlist struct {
	plain  map[string]struct{}
	hashes [][]byte
}

// NewAllowlist builds an allowlist from secrets. Empty entries are ignored.
func NewAllowlist(secrets ...string) *Allowlist {
	a := &Allowlist{plain: make(map[string]struct{}, len(secrets))}
	for _, s := range secrets {
		if s == "" {
			continue
		}
		if isBcryptHash(s) {
			a.hashes = append(a.hashes, []byte(s))
			continue
		}
		a.plain[s] = struct{}{}
	}
	return a
}

// Contains reports whether candidate is one of the accepted secrets.
func (a *Allowlist) Contains(candidate string) bool {
	if a == nil || candidate == "" {
		return false
	}
	if _, ok := a.plain[candidate]; ok {
		return true
	}
	for _, h := range a.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(candidate)) == nil {
			return true
		}
	}
	return false
}

// Len returns the number of accepted secrets.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.plain) + len(a.hashes)
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
