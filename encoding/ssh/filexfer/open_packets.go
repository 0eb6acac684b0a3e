package sshfx

// OpenPacket defines the SSH_FXP_OPEN packet.
type OpenPacket struct {
	RequestID uint32
	Filename  string
	PFlags    uint32
	Attrs     Attributes
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *OpenPacket) Type() PacketType {
	return PacketTypeOpen
}

// GetRequestID returns the request-id of the packet.
func (p *OpenPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *OpenPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *OpenPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(filename) + uint32(pflags) + ATTRS(attrs)
	return 1 + 4 + 4 + len(p.Filename) + 4 + p.Attrs.Len()
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *OpenPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeOpen, p.RequestID)
	buf.AppendString(p.Filename)
	buf.AppendUint32(p.PFlags)

	p.Attrs.MarshalInto(buf)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *OpenPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *OpenPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = OpenPacket{
		RequestID: buf.ConsumeUint32(),
		Filename:  buf.ConsumeString(),
		PFlags:    buf.ConsumeUint32(),
	}

	return p.Attrs.UnmarshalFrom(buf)
}

// OpenDirPacket defines the SSH_FXP_OPENDIR packet.
type OpenDirPacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *OpenDirPacket) Type() PacketType {
	return PacketTypeOpenDir
}

// GetRequestID returns the request-id of the packet.
func (p *OpenDirPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *OpenDirPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *OpenDirPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *OpenDirPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeOpenDir, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *OpenDirPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *OpenDirPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}
