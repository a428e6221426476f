// Package serializer encodes the replica protocol Message. All codecs satisfy
// IRPCSerializer and are picked by name with ByName ("" selects binary):
//
//   - binary: Flag-based format that writes only the fields present on a
//     message. Headers are written in sorted key order, so equal messages
//     encode to equal bytes. This is the default for replica traffic.
//
//   - json: Readable, useful when looking at traffic of the http transport.
//
//   - cbor: Compact and self-describing, for replica hosts that are not
//     written in Go.
//
//   - gob: Go's gob encoding, kept for completeness. It is the slowest codec.
//
// Serializers are stateless and safe for concurrent use:
//
//	s, err := serializer.ByName("cbor")
//	data, err := s.Serialize(msg)
//	// ... send data ...
//	var received common.Message
//	err = s.Deserialize(receivedData, &received)
package serializer
