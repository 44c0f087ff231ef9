package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/aodb/lib/store"
	"github.com/ValentinKolb/aodb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 2 bytes flags, then every present field in flag
// order. Variable sized fields are prefixed with a 4 byte length, lists
// with a 4 byte count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey       uint16 = 1 << 0
	hasValue     uint16 = 1 << 1
	hasValues    uint16 = 1 << 2
	hasVersion   uint16 = 1 << 3
	hasFrom      uint16 = 1 << 4
	hasTo        uint16 = 1 << 5
	hasTimeout   uint16 = 1 << 6
	hasRecursive uint16 = 1 << 7
	hasEntries   uint16 = 1 << 8
	hasOk        uint16 = 1 << 9
	hasErr       uint16 = 1 << 10
	hasMeta      uint16 = 1 << 11
)

// entry flags
const (
	entryDeleted byte = 1 << 0
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))
	w := &binaryWriter{buf: result, pos: headerSize}

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Key != "" {
		flags |= hasKey
		w.putBytes([]byte(msg.Key))
	}
	if msg.Value != nil {
		flags |= hasValue
		w.putBytes(msg.Value)
	}
	if msg.Values != nil {
		flags |= hasValues
		w.putList(msg.Values)
	}
	if msg.Version != nil {
		flags |= hasVersion
		w.putBytes(msg.Version)
	}
	if msg.From > 0 {
		flags |= hasFrom
		w.putUint64(msg.From)
	}
	if msg.To > 0 {
		flags |= hasTo
		w.putUint64(msg.To)
	}
	if msg.Timeout > 0 {
		flags |= hasTimeout
		w.putUint64(msg.Timeout)
	}
	if msg.Recursive {
		flags |= hasRecursive
	}
	if msg.Entries != nil {
		flags |= hasEntries
		w.putUint32(uint32(len(msg.Entries)))
		for _, e := range msg.Entries {
			w.putBytes([]byte(e.Key))
			w.putList(e.Values)
			var ef byte
			if e.Deleted {
				ef |= entryDeleted
			}
			w.buf[w.pos] = ef
			w.pos++
			w.putUint64(e.Length)
		}
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Err != "" {
		flags |= hasErr
		w.putBytes([]byte(msg.Err))
		w.putUint64(uint64(msg.Code))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.putBytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := binary.BigEndian.Uint16(data[1:3])

	r := &binaryReader{buf: data, pos: headerSize}

	if flags&hasKey != 0 {
		msg.Key = string(r.readBytes("key"))
	}
	if flags&hasValue != 0 {
		msg.Value = r.readBytes("value")
	}
	if flags&hasValues != 0 {
		msg.Values = r.readList("values")
	}
	if flags&hasVersion != 0 {
		msg.Version = r.readBytes("version")
	}
	if flags&hasFrom != 0 {
		msg.From = r.readUint64("from")
	}
	if flags&hasTo != 0 {
		msg.To = r.readUint64("to")
	}
	if flags&hasTimeout != 0 {
		msg.Timeout = r.readUint64("timeout")
	}
	msg.Recursive = flags&hasRecursive != 0
	if flags&hasEntries != 0 {
		n := r.readUint32("entry count")
		if r.err == nil && int(n) > len(data)-r.pos {
			r.fail("entries")
		}
		if r.err == nil {
			msg.Entries = make([]common.Entry, n)
		}
		for i := 0; r.err == nil && i < int(n); i++ {
			e := &msg.Entries[i]
			e.Key = string(r.readBytes("entry key"))
			if e.Values = r.readList("entry values"); len(e.Values) == 0 {
				e.Values = nil
			}
			e.Deleted = r.readByte("entry flags")&entryDeleted != 0
			e.Length = r.readUint64("entry length")
		}
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasErr != 0 {
		msg.Err = string(r.readBytes("error"))
		msg.Code = store.RetCode(r.readUint64("error code"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.readBytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 2 bytes for flags
	size := headerSize

	listSize := func(list [][]byte) int {
		n := 4 // count
		for _, v := range list {
			n += 4 + len(v)
		}
		return n
	}

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Values != nil {
		size += listSize(msg.Values)
	}
	if msg.Version != nil {
		size += 4 + len(msg.Version)
	}
	if msg.From > 0 {
		size += 8
	}
	if msg.To > 0 {
		size += 8
	}
	if msg.Timeout > 0 {
		size += 8
	}
	if msg.Entries != nil {
		size += 4
		for _, e := range msg.Entries {
			size += 4 + len(e.Key) + listSize(e.Values) + 1 + 8
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err) + 8 // error string + code
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// binaryWriter writes into a buffer sized by sizeBytes
type binaryWriter struct {
	buf []byte
	pos int
}

func (w *binaryWriter) putUint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.pos:w.pos+4], v)
	w.pos += 4
}

func (w *binaryWriter) putUint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[w.pos:w.pos+8], v)
	w.pos += 8
}

func (w *binaryWriter) putBytes(v []byte) {
	w.putUint32(uint32(len(v)))
	w.pos += copy(w.buf[w.pos:], v)
}

func (w *binaryWriter) putList(list [][]byte) {
	w.putUint32(uint32(len(list)))
	for _, v := range list {
		w.putBytes(v)
	}
}

// binaryReader reads from a buffer and keeps the first error
type binaryReader struct {
	buf []byte
	pos int
	err error
}

func (r *binaryReader) fail(field string) {
	if r.err == nil {
		r.err = fmt.Errorf("data too short for %s", field)
	}
}

func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.buf) {
		r.fail(field)
		return false
	}
	return true
}

func (r *binaryReader) readByte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *binaryReader) readUint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binaryReader) readUint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// bytes reads a length prefixed field. The result is a copy and never nil.
func (r *binaryReader) readBytes(field string) []byte {
	n := int(r.readUint32(field + " length"))
	if !r.need(n, field+" data") {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+n])
	r.pos += n
	return v
}

func (r *binaryReader) readList(field string) [][]byte {
	n := int(r.readUint32(field + " count"))
	// every element needs at least its length prefix
	if !r.need(n*4, field) {
		return nil
	}
	list := make([][]byte, n)
	for i := range list {
		list[i] = r.readBytes(field)
	}
	return list
}
