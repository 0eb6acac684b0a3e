package sshfx

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrUnknownPacketType is the cause of a DecodeError for a packet type this package cannot decode.
var ErrUnknownPacketType = errors.New("unknown packet type")

// DecodeError reports a malformed frame in a packet stream.
// A DecodeError cannot be attributed to any single request,
// and the stream it was read from cannot be resynchronized.
type DecodeError struct {
	Length uint32
	Type   PacketType
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Type == 0 {
		return fmt.Sprintf("sshfx: decode frame of length %d: %v", e.Length, e.Err)
	}

	return fmt.Sprintf("sshfx: decode %v of length %d: %v", e.Type, e.Length, e.Err)
}

// Unwrap returns the underlying cause of the DecodeError.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newMessageFromType(typ PacketType) (Message, error) {
	switch typ {
	case PacketTypeInit:
		return new(InitPacket), nil
	case PacketTypeVersion:
		return new(VersionPacket), nil
	case PacketTypeOpen:
		return new(OpenPacket), nil
	case PacketTypeClose:
		return new(ClosePacket), nil
	case PacketTypeRead:
		return new(ReadPacket), nil
	case PacketTypeWrite:
		return new(WritePacket), nil
	case PacketTypeLStat:
		return new(LStatPacket), nil
	case PacketTypeFStat:
		return new(FStatPacket), nil
	case PacketTypeOpenDir:
		return new(OpenDirPacket), nil
	case PacketTypeReadDir:
		return new(ReadDirPacket), nil
	case PacketTypeRemove:
		return new(RemovePacket), nil
	case PacketTypeMkdir:
		return new(MkdirPacket), nil
	case PacketTypeRmdir:
		return new(RmdirPacket), nil
	case PacketTypeRealPath:
		return new(RealPathPacket), nil
	case PacketTypeStat:
		return new(StatPacket), nil
	case PacketTypeRename:
		return new(RenamePacket), nil
	case PacketTypeStatus:
		return new(StatusPacket), nil
	case PacketTypeHandle:
		return new(HandlePacket), nil
	case PacketTypeData:
		return new(DataPacket), nil
	case PacketTypeName:
		return new(NamePacket), nil
	case PacketTypeAttrs:
		return new(AttrsPacket), nil
	default:
		return nil, ErrUnknownPacketType
	}
}

// Marshal returns the full wire encoding of m, including the uint32(length).
func Marshal(m Message) ([]byte, error) {
	return ComposePacket(m.MarshalPacket(nil))
}

// AppendMessage appends the full wire encoding of m, including the uint32(length), to b.
func AppendMessage(b []byte, m Message) ([]byte, error) {
	header, payload, err := m.MarshalPacket(nil)
	if err != nil {
		return b, err
	}

	b = append(b, header...)
	return append(b, payload...), nil
}

// Unmarshal decodes a single frame into a Message.
// It is assumed that the uint32(length) has already been consumed to receive the frame.
//
// The returned Message never aliases frame.
func Unmarshal(frame []byte) (Message, error) {
	buf := NewBuffer(frame)

	typ := PacketType(buf.ConsumeUint8())
	if buf.Err != nil {
		return nil, &DecodeError{Length: uint32(len(frame)), Err: buf.Err}
	}

	m, err := newMessageFromType(typ)
	if err != nil {
		return nil, &DecodeError{Length: uint32(len(frame)), Type: typ, Err: err}
	}

	if err := m.UnmarshalPacketBody(buf); err != nil {
		return nil, &DecodeError{Length: uint32(len(frame)), Type: typ, Err: err}
	}

	return m, nil
}

// checkLength validates a uint32(length) prefix against maxLength.
func checkLength(length, maxLength uint32) error {
	if length < 1 {
		return &DecodeError{Length: length, Err: ErrShortPacket}
	}

	if length > maxLength {
		return &DecodeError{Length: length, Err: ErrLongPacket}
	}

	return nil
}

// ReadMessage reads a single uint32 length-prefixed Message from r.
// A frame longer than maxLength is reported as a DecodeError without reading its body.
func ReadMessage(r io.Reader, maxLength uint32) (Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(hdr[:])
	if err := checkLength(length, maxLength); err != nil {
		return nil, err
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return Unmarshal(frame)
}
