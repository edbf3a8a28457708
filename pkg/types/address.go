package types

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Address is a 20-byte account identifier rendered as 0x-prefixed lowercase
// hex. The zero value is the null address.
type Address string

// ZeroAddress is the null address.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalizes a 0x-prefixed hex address.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", fmt.Errorf("address %q: missing 0x prefix", raw)
	}
	body := s[2:]
	if len(body) != AddressLength*2 {
		return "", fmt.Errorf("address %q: expected %d hex chars, got %d", raw, AddressLength*2, len(body))
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("address %q: %w", raw, err)
	}
	return Address("0x" + strings.ToLower(body)), nil
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty or the null address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// Valid reports whether the address parses.
func (a Address) Valid() bool {
	_, err := ParseAddress(string(a))
	return err == nil
}

// Value implements driver.Valuer, storing the normalized hex string.
func (a Address) Value() (driver.Value, error) {
	if a == "" {
		return string(ZeroAddress), nil
	}
	parsed, err := ParseAddress(string(a))
	if err != nil {
		return nil, err
	}
	return string(parsed), nil
}

// Scan implements sql.Scanner.
func (a *Address) Scan(value interface{}) error {
	if value == nil {
		*a = ""
		return nil
	}
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	parsed, err := ParseAddress(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
