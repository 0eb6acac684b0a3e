package sshfx

// StatusPacket defines the SSH_FXP_STATUS packet.
//
// Specified in https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02#section-7
type StatusPacket struct {
	RequestID    uint32
	StatusCode   Status
	ErrorMessage string
	LanguageTag  string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *StatusPacket) Type() PacketType {
	return PacketTypeStatus
}

// GetRequestID returns the request-id of the packet.
func (p *StatusPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *StatusPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *StatusPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + uint32(error/status code) + string(error message) + string(language tag)
	return 1 + 4 + 4 + 4 + len(p.ErrorMessage) + 4 + len(p.LanguageTag)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *StatusPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeStatus, p.RequestID)
	buf.AppendUint32(uint32(p.StatusCode))
	buf.AppendString(p.ErrorMessage)
	buf.AppendString(p.LanguageTag)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *StatusPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
//
// Some servers omit the error message and language tag entirely,
// so a body that ends right after the status code is accepted.
func (p *StatusPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = StatusPacket{
		RequestID:  buf.ConsumeUint32(),
		StatusCode: Status(buf.ConsumeUint32()),
	}

	if buf.Err != nil || buf.Len() == 0 {
		return buf.Err
	}

	p.ErrorMessage = buf.ConsumeString()
	if buf.Len() > 0 {
		p.LanguageTag = buf.ConsumeString()
	}

	return buf.Err
}

// HandlePacket defines the SSH_FXP_HANDLE packet.
type HandlePacket struct {
	RequestID uint32
	Handle    string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *HandlePacket) Type() PacketType {
	return PacketTypeHandle
}

// GetRequestID returns the request-id of the packet.
func (p *HandlePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *HandlePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *HandlePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(handle)
	return 1 + 4 + 4 + len(p.Handle)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *HandlePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeHandle, p.RequestID, p.Handle)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *HandlePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *HandlePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Handle, err = unmarshalIDString(buf)
	return err
}

// DataPacket defines the SSH_FXP_DATA packet.
type DataPacket struct {
	RequestID uint32
	Data      []byte
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *DataPacket) Type() PacketType {
	return PacketTypeData
}

// GetRequestID returns the request-id of the packet.
func (p *DataPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *DataPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *DataPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(data)
	return 1 + 4 + 4 + len(p.Data)
}

// MarshalPacket returns p as a two-part binary encoding of p.
//
// The data is returned as the payload, and is not copied into the header.
func (p *DataPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize() - len(p.Data))
	}

	buf.StartPacket(PacketTypeData, p.RequestID)
	buf.AppendUint32(uint32(len(p.Data)))

	return buf.Packet(p.Data)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *DataPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
//
// The data is copied out of the Buffer.
func (p *DataPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = DataPacket{
		RequestID: buf.ConsumeUint32(),
		Data:      buf.ConsumeByteSliceCopy(),
	}

	return buf.Err
}

// NamePacket defines the SSH_FXP_NAME packet.
type NamePacket struct {
	RequestID uint32
	Entries   []*NameEntry
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *NamePacket) Type() PacketType {
	return PacketTypeName
}

// GetRequestID returns the request-id of the packet.
func (p *NamePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *NamePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *NamePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + uint32(count)
	size := 1 + 4 + 4

	for _, e := range p.Entries {
		size += e.Len()
	}

	return size
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *NamePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeName, p.RequestID)
	buf.AppendUint32(uint32(len(p.Entries)))

	for _, e := range p.Entries {
		e.MarshalInto(buf)
	}

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *NamePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *NamePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = NamePacket{
		RequestID: buf.ConsumeUint32(),
	}

	count := buf.ConsumeUint32()
	if buf.Err != nil {
		return buf.Err
	}

	// Each entry is at least two empty strings and a uint32(flags).
	if int64(count)*12 > int64(buf.Len()) {
		buf.Err = ErrShortPacket
		return buf.Err
	}

	if count > 0 {
		p.Entries = make([]*NameEntry, 0, count)
	}

	for i := uint32(0); i < count; i++ {
		var e NameEntry
		if err := e.UnmarshalFrom(buf); err != nil {
			return err
		}

		p.Entries = append(p.Entries, &e)
	}

	return buf.Err
}

// AttrsPacket defines the SSH_FXP_ATTRS packet.
type AttrsPacket struct {
	RequestID uint32
	Attrs     Attributes
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *AttrsPacket) Type() PacketType {
	return PacketTypeAttrs
}

// GetRequestID returns the request-id of the packet.
func (p *AttrsPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *AttrsPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *AttrsPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + ATTRS(attrs)
	return 1 + 4 + p.Attrs.Len()
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *AttrsPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeAttrs, p.RequestID)
	p.Attrs.MarshalInto(buf)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *AttrsPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *AttrsPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = AttrsPacket{
		RequestID: buf.ConsumeUint32(),
	}

	return p.Attrs.UnmarshalFrom(buf)
}
