package pkey

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/spaolacci/murmur3"
)

// Boundaries of the effective partition key space
const (
	MinimumInclusiveEffectivePartitionKey = ""
	MaximumExclusiveEffectivePartitionKey = "FF"
)

// --------------------------------------------------------------------------
// Binary encoding (order preserving, self-delimiting)
// --------------------------------------------------------------------------

// EncodeBinary returns the binary encoding of all components
func (k Key) EncodeBinary() []byte {
	buf := make([]byte, 0, 16*len(k.components))
	for _, c := range k.components {
		buf = c.appendBinary(buf)
	}
	return buf
}

// ToHexEncodedBinaryString returns the upper-case hex form of EncodeBinary
func (k Key) ToHexEncodedBinaryString() string {
	return strings.ToUpper(hex.EncodeToString(k.EncodeBinary()))
}

func (c Component) appendBinary(buf []byte) []byte {
	buf = append(buf, byte(c.typ))
	switch c.typ {
	case TypeNumber:
		return appendNumber(buf, c.num)
	case TypeString:
		return appendString(buf, c.str)
	default:
		return buf
	}
}

// appendNumber writes the first 8 bits of the order preserving payload, then
// 7 bit chunks each followed by a 1 bit; the last chunk ends with a 0 bit.
func appendNumber(buf []byte, v float64) []byte {
	payload := encodeDoubleAsUint64(v)

	buf = append(buf, byte(payload>>56))
	payload <<= 8

	var chunk byte
	first := true
	for {
		if !first {
			buf = append(buf, chunk)
		}
		first = false
		chunk = byte(payload>>56) | 0x01
		payload <<= 7
		if payload == 0 {
			break
		}
	}
	return append(buf, chunk&0xFE)
}

// encodeDoubleAsUint64 maps the bits of a float so that unsigned comparison
// matches numeric comparison
func encodeDoubleAsUint64(v float64) uint64 {
	bits := math.Float64bits(v)
	const mask = uint64(1) << 63
	if bits < mask {
		return bits ^ mask
	}
	return ^bits + 1
}

func appendString(buf []byte, s string) []byte {
	raw := []byte(s)
	short := len(raw) <= maxStringBytesToAppend
	n := len(raw)
	if !short {
		n = maxStringBytesToAppend + 1
	}
	for i := 0; i < n; i++ {
		b := raw[i]
		if b < 0xFF {
			b++
		}
		buf = append(buf, b)
	}
	if short {
		buf = append(buf, 0x00)
	}
	return buf
}

// --------------------------------------------------------------------------
// Hashing encoding
// --------------------------------------------------------------------------

// appendForHashing writes the content defined encoding used as hash input
func (c Component) appendForHashing(buf []byte) ([]byte, error) {
	switch c.typ {
	case TypeUndefined, TypeNull, TypeFalse, TypeTrue, TypeInfinity:
		return append(buf, byte(c.typ)), nil
	case TypeNumber:
		buf = append(buf, byte(c.typ))
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(c.num)), nil
	case TypeString:
		buf = append(buf, byte(c.typ))
		buf = append(buf, c.str...)
		return append(buf, 0x00), nil
	default:
		return nil, dberr.Client(dberr.ErrInvalidPartitionKey, "component %s cannot be hashed", c.typ)
	}
}

// --------------------------------------------------------------------------
// Effective partition key
// --------------------------------------------------------------------------

// EffectivePartitionKeyString computes the effective partition key of k for a
// collection with the given definition
func EffectivePartitionKeyString(k Key, def *Definition) (string, error) {
	if k.IsEmpty() {
		return MinimumInclusiveEffectivePartitionKey, nil
	}
	if k.IsInfinity() {
		return MaximumExclusiveEffectivePartitionKey, nil
	}
	if def == nil {
		return "", dberr.Client(dberr.ErrMissingPartitionKeyDefinition, "cannot compute the effective partition key of %s", k)
	}
	if len(k.components) > len(def.Paths) {
		return "", dberr.Client(dberr.ErrTooManyPartitionKeyComponents,
			"key %s has %d components, the definition only %d paths", k, len(k.components), len(def.Paths))
	}

	switch def.kind() {
	case KindRange:
		return k.ToHexEncodedBinaryString(), nil
	default:
		return effectiveKeyForHashPartitioning(k)
	}
}

// effectiveKeyForHashPartitioning prepends the hash of the truncated components
func effectiveKeyForHashPartitioning(k Key) (string, error) {
	truncated := make([]Component, len(k.components))
	var input []byte
	var err error
	for i, c := range k.components {
		truncated[i] = c.Truncate()
		if input, err = truncated[i].appendForHashing(input); err != nil {
			return "", err
		}
	}

	hash := murmur3.Sum32(input)

	components := make([]Component, 0, len(truncated)+1)
	components = append(components, Number(float64(hash)))
	components = append(components, truncated...)
	return Key{components: components}.ToHexEncodedBinaryString(), nil
}
