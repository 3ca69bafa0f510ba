// Package address canonicalizes participant identifiers. Wallet-style hex
// addresses are rewritten in EIP-55 mixed-case checksum form so the same
// account always maps to one participant; any other identifier is kept
// verbatim.
package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrEmpty       = errors.New("address is empty")
	ErrBadChecksum = errors.New("address checksum mismatch")
)

// IsHex reports whether s is a 0x-prefixed 20-byte hex address.
func IsHex(s string) bool {
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// Checksum returns the EIP-55 form of a hex address. s must satisfy IsHex.
func Checksum(s string) string {
	lower := strings.ToLower(s[2:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte("0x" + lower)
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i+2] = c - 'a' + 'A'
		}
	}
	return string(out)
}

// Normalize trims id and checksums it when it is a hex address. A
// mixed-case address whose casing disagrees with its checksum is rejected;
// all-lower and all-upper inputs carry no checksum and are accepted.
func Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmpty
	}
	if !IsHex(id) {
		return id, nil
	}
	sum := Checksum(id)
	body := id[2:]
	mixed := strings.ToLower(body) != body && strings.ToUpper(body) != body
	if mixed && body != sum[2:] {
		return "", ErrBadChecksum
	}
	return sum, nil
}
