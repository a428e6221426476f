package serializer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ValentinKolb/dDoc/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasResourceType byte = 1 << 0
	hasAddress      byte = 1 << 1
	hasHeaders      byte = 1 << 2
	hasBody         byte = 1 << 3
	hasStatus       byte = 1 << 4
	hasErr          byte = 1 << 5
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle ResourceType
	if msg.ResourceType != 0 {
		flags |= hasResourceType
		result[pos] = msg.ResourceType
		pos += 1
	}

	// Handle Address
	if msg.Address != "" {
		flags |= hasAddress
		pos = putString(result, pos, msg.Address)
	}

	// Handle Headers, sorted for a deterministic encoding
	if msg.Headers != nil {
		flags |= hasHeaders
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Headers)))
		pos += 4
		for _, name := range sortedKeys(msg.Headers) {
			pos = putString(result, pos, name)
			pos = putString(result, pos, msg.Headers[name])
		}
	}

	// Handle Body
	if msg.Body != nil {
		flags |= hasBody
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Body)))
		pos += 4
		copy(result[pos:pos+len(msg.Body)], msg.Body)
		pos += len(msg.Body)
	}

	// Handle Status
	if msg.Status != 0 {
		flags |= hasStatus
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(int32(msg.Status)))
		pos += 4
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = putString(result, pos, msg.Err)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2
	var err error

	// Read ResourceType if present
	msg.ResourceType = 0
	if flags&hasResourceType != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for resource type")
		}
		msg.ResourceType = data[pos]
		pos += 1
	}

	// Read Address if present
	msg.Address = ""
	if flags&hasAddress != 0 {
		if msg.Address, pos, err = readString(data, pos, "address"); err != nil {
			return err
		}
	}

	// Read Headers if present
	msg.Headers = nil
	if flags&hasHeaders != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for header count")
		}
		count := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		// every header needs at least 8 bytes, reject counts the data cannot hold
		if count > (len(data)-pos)/8 {
			return fmt.Errorf("data too short for %d headers", count)
		}

		msg.Headers = make(map[string]string, count)
		for i := 0; i < count; i++ {
			var name, value string
			if name, pos, err = readString(data, pos, "header name"); err != nil {
				return err
			}
			if value, pos, err = readString(data, pos, "header value"); err != nil {
				return err
			}
			msg.Headers[name] = value
		}
	}

	// Read Body if present
	if flags&hasBody != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for body length")
		}

		// Read body length
		bodyLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(bodyLen) > len(data) {
			return fmt.Errorf("data too short for body data")
		}

		// Read body data - create an empty slice (not nil) if length is 0
		// Allocate only if needed
		if msg.Body == nil || cap(msg.Body) < int(bodyLen) {
			msg.Body = make([]byte, bodyLen)
		} else {
			msg.Body = msg.Body[:bodyLen]
		}

		if bodyLen > 0 {
			copy(msg.Body, data[pos:pos+int(bodyLen)])
		}
		pos += int(bodyLen)
	} else {
		msg.Body = nil
	}

	// Read Status if present
	msg.Status = 0
	if flags&hasStatus != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for status")
		}
		msg.Status = int(int32(binary.BigEndian.Uint32(data[pos : pos+4])))
		pos += 4
	}

	// Read Err if present
	msg.Err = ""
	if flags&hasErr != 0 {
		if msg.Err, pos, err = readString(data, pos, "error"); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.ResourceType != 0 {
		size += 1
	}
	if msg.Address != "" {
		size += 4 + len(msg.Address)
	}
	if msg.Headers != nil {
		size += 4 // header count
		for name, value := range msg.Headers {
			size += 8 + len(name) + len(value)
		}
	}
	if msg.Body != nil {
		size += 4 + len(msg.Body)
	}
	if msg.Status != 0 {
		size += 4
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// putString writes a length prefixed string at pos and returns the new position
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(buf[pos:pos+len(s)], s)
	return pos + len(s)
}

// readString reads a length prefixed string at pos
func readString(data []byte, pos int, field string) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if n < 0 || pos+n > len(data) {
		return "", pos, fmt.Errorf("data too short for %s data", field)
	}
	return string(data[pos : pos+n]), pos + n, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
