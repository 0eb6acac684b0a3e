package sshfx

// ClosePacket defines the SSH_FXP_CLOSE packet.
type ClosePacket struct {
	RequestID uint32
	Handle    string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *ClosePacket) Type() PacketType {
	return PacketTypeClose
}

// GetRequestID returns the request-id of the packet.
func (p *ClosePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *ClosePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *ClosePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle)
	return 1 + 4 + 4 + len(p.Handle)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *ClosePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeClose, p.RequestID, p.Handle)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *ClosePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *ClosePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Handle, err = unmarshalIDString(buf)
	return err
}

// ReadPacket defines the SSH_FXP_READ packet.
type ReadPacket struct {
	RequestID uint32
	Handle    string
	Offset    uint64
	Length    uint32
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *ReadPacket) Type() PacketType {
	return PacketTypeRead
}

// GetRequestID returns the request-id of the packet.
func (p *ReadPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *ReadPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *ReadPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle) + uint64(offset) + uint32(len)
	return 1 + 4 + 4 + len(p.Handle) + 8 + 4
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *ReadPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeRead, p.RequestID)
	buf.AppendString(p.Handle)
	buf.AppendUint64(p.Offset)
	buf.AppendUint32(p.Length)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *ReadPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *ReadPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = ReadPacket{
		RequestID: buf.ConsumeUint32(),
		Handle:    buf.ConsumeString(),
		Offset:    buf.ConsumeUint64(),
		Length:    buf.ConsumeUint32(),
	}

	return buf.Err
}

// WritePacket defines the SSH_FXP_WRITE packet.
type WritePacket struct {
	RequestID uint32
	Handle    string
	Offset    uint64
	Data      []byte
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *WritePacket) Type() PacketType {
	return PacketTypeWrite
}

// GetRequestID returns the request-id of the packet.
func (p *WritePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *WritePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *WritePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle) + uint64(offset) + string(data)
	return 1 + 4 + 4 + len(p.Handle) + 8 + 4 + len(p.Data)
}

// MarshalPacket returns p as a two-part binary encoding of p.
//
// The data is returned as the payload, and is not copied into the header.
func (p *WritePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize() - len(p.Data))
	}

	buf.StartPacket(PacketTypeWrite, p.RequestID)
	buf.AppendString(p.Handle)
	buf.AppendUint64(p.Offset)
	buf.AppendUint32(uint32(len(p.Data)))

	return buf.Packet(p.Data)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *WritePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
//
// The data is copied out of the Buffer.
func (p *WritePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = WritePacket{
		RequestID: buf.ConsumeUint32(),
		Handle:    buf.ConsumeString(),
		Offset:    buf.ConsumeUint64(),
		Data:      buf.ConsumeByteSliceCopy(),
	}

	return buf.Err
}

// FStatPacket defines the SSH_FXP_FSTAT packet.
type FStatPacket struct {
	RequestID uint32
	Handle    string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *FStatPacket) Type() PacketType {
	return PacketTypeFStat
}

// GetRequestID returns the request-id of the packet.
func (p *FStatPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *FStatPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *FStatPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle)
	return 1 + 4 + 4 + len(p.Handle)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *FStatPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeFStat, p.RequestID, p.Handle)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *FStatPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *FStatPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Handle, err = unmarshalIDString(buf)
	return err
}

// ReadDirPacket defines the SSH_FXP_READDIR packet.
type ReadDirPacket struct {
	RequestID uint32
	Handle    string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *ReadDirPacket) Type() PacketType {
	return PacketTypeReadDir
}

// GetRequestID returns the request-id of the packet.
func (p *ReadDirPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *ReadDirPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *ReadDirPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle)
	return 1 + 4 + 4 + len(p.Handle)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *ReadDirPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeReadDir, p.RequestID, p.Handle)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *ReadDirPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *ReadDirPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Handle, err = unmarshalIDString(buf)
	return err
}
