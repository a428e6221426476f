// Package pkey implements the canonical, comparable representation of
// partition key values and the effective partition key used for routing.
//
// A partition key value is a Key: an ordered sequence of Components. Each
// component is a tagged union over the types
//
//	Undefined < Null < False < True < MinNumber < Number < MaxNumber
//	          < MinString < String < MaxString < Infinity
//
// whose fixed type bytes (0x00 to 0x09, and 0xFF for Infinity) are the primary
// comparison key. Numbers compare by value, strings byte-wise.
//
// Two keys are predefined: Empty (no components, used for unpartitioned
// collections) and Infinity (a single Infinity component, the exclusive upper
// bound of the key space).
//
// The effective partition key (EPK) is the upper-case hex string of the
// self-delimiting binary encoding of a key. It is the only representation that
// is ever compared against the boundaries of a routing map:
//
//   - Empty maps to "" (the minimum inclusive EPK).
//   - Infinity maps to "FF" (the maximum exclusive EPK).
//   - For hash partitioned collections a synthetic Number component holding the
//     32 bit MurmurHash3 (x86, seed 0) of the hashing encoding of the
//     (truncated) components is prepended before encoding.
//   - For range partitioned collections the components are encoded as they are.
//
// The binary encoding writes a type byte per component. Numbers use an order
// preserving encoding of the IEEE 754 bits: a first chunk of 8 bits followed by
// chunks of 7 bits, each terminated by a 1 bit except for the last one. Strings
// write their UTF-8 bytes incremented by one (so 0x00 can terminate them), at
// most 100 bytes plus one marker byte for longer strings, and a 0x00 terminator
// when the string was not truncated.
//
// Keys are also exchanged as JSON arrays (request headers, continuation data):
// undefined is {}, null, booleans, numbers and strings are plain JSON values,
// the Min/Max components are {"type":"MinNumber"} etc, Infinity is the string
// "Infinity" and Empty is [].
//
// ExtractPartitionKeyValue walks the partition key paths of a Definition in a
// raw JSON document using github.com/buger/jsonparser.
package pkey
