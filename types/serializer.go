package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default. The JSON representation always carries the "0x" prefix, but
// it is accepted as optional when decoding.
type HexBytes []byte

// String returns the hexadecimal representation prefixed with "0x".
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// SetString decodes a hexadecimal string, with or without the "0x" prefix.
func (b *HexBytes) SetString(s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = data
	return nil
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	data = data[1 : len(data)-1]
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}
	decoded := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(decoded, data); err != nil {
		return err
	}
	*b = decoded
	return nil
}

// Equal reports whether b and other contain the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// BigInt is a big.Int which encodes as a decimal string in json. Commitments
// and nullifiers are field elements that do not fit in a uint64, so they
// travel as strings over the API.
type BigInt big.Int

// MathBigInt converts b to a *big.Int.
func (b *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(b)
}

// SetUint64 sets b to x and returns b.
func (b *BigInt) SetUint64(x uint64) *BigInt {
	return (*BigInt)(b.MathBigInt().SetUint64(x))
}

// SetBytes interprets buf as big-endian unsigned integer and returns b.
func (b *BigInt) SetBytes(buf []byte) *BigInt {
	return (*BigInt)(b.MathBigInt().SetBytes(buf))
}

// SetString sets b from a base-10 string representation.
func (b *BigInt) SetString(s string) (*BigInt, bool) {
	v, ok := b.MathBigInt().SetString(s, 10)
	if !ok {
		return nil, false
	}
	return (*BigInt)(v), true
}

// Bytes returns the big-endian representation of b.
func (b *BigInt) Bytes() []byte {
	return b.MathBigInt().Bytes()
}

func (b *BigInt) String() string {
	return b.MathBigInt().String()
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := b.MathBigInt().SetString(s, 10); !ok {
		return fmt.Errorf("invalid big integer: %q", s)
	}
	return nil
}
