package sshfx

// InitPacket defines the SSH_FXP_INIT packet.
type InitPacket struct {
	Version    uint32
	Extensions []*ExtensionPair
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *InitPacket) Type() PacketType {
	return PacketTypeInit
}

// MarshalSize returns the number of bytes p would marshal into, excluding the uint32(length).
func (p *InitPacket) MarshalSize() int {
	size := 1 + 4 // byte(type) + uint32(version)

	for _, ext := range p.Extensions {
		size += ext.Len()
	}

	return size
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *InitPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	// The version sits where every other packet carries its request-id.
	buf.StartPacket(PacketTypeInit, p.Version)
	marshalExtensions(buf, p.Extensions)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *InitPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
// It is assumed that the uint32(length) and uint8(type) have already been consumed.
func (p *InitPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = InitPacket{
		Version: buf.ConsumeUint32(),
	}

	if buf.Err != nil {
		return buf.Err
	}

	p.Extensions, err = unmarshalExtensions(buf)
	return err
}

// VersionPacket defines the SSH_FXP_VERSION packet.
type VersionPacket struct {
	Version    uint32
	Extensions []*ExtensionPair
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *VersionPacket) Type() PacketType {
	return PacketTypeVersion
}

// MarshalSize returns the number of bytes p would marshal into, excluding the uint32(length).
func (p *VersionPacket) MarshalSize() int {
	size := 1 + 4 // byte(type) + uint32(version)

	for _, ext := range p.Extensions {
		size += ext.Len()
	}

	return size
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *VersionPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeVersion, p.Version)
	marshalExtensions(buf, p.Extensions)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *VersionPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
// It is assumed that the uint32(length) and uint8(type) have already been consumed.
func (p *VersionPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = VersionPacket{
		Version: buf.ConsumeUint32(),
	}

	if buf.Err != nil {
		return buf.Err
	}

	p.Extensions, err = unmarshalExtensions(buf)
	return err
}
