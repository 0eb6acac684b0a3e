package sshfx

// marshalIDString is the shared encoding of every packet whose body is a request-id and a single string.
func marshalIDString(b []byte, packetType PacketType, reqid uint32, s string) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(1 + 4 + 4 + len(s))
	}

	buf.StartPacket(packetType, reqid)
	buf.AppendString(s)

	return buf.Packet(nil)
}

func unmarshalIDString(buf *Buffer) (reqid uint32, s string, err error) {
	reqid = buf.ConsumeUint32()
	s = buf.ConsumeString()
	return reqid, s, buf.Err
}

// MkdirPacket defines the SSH_FXP_MKDIR packet.
type MkdirPacket struct {
	RequestID uint32
	Path      string
	Attrs     Attributes
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *MkdirPacket) Type() PacketType {
	return PacketTypeMkdir
}

// GetRequestID returns the request-id of the packet.
func (p *MkdirPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *MkdirPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *MkdirPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path) + ATTRS(attrs)
	return 1 + 4 + 4 + len(p.Path) + p.Attrs.Len()
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *MkdirPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeMkdir, p.RequestID)
	buf.AppendString(p.Path)

	p.Attrs.MarshalInto(buf)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *MkdirPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *MkdirPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = MkdirPacket{
		RequestID: buf.ConsumeUint32(),
		Path:      buf.ConsumeString(),
	}

	return p.Attrs.UnmarshalFrom(buf)
}

// RealPathPacket defines the SSH_FXP_REALPATH packet.
type RealPathPacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *RealPathPacket) Type() PacketType {
	return PacketTypeRealPath
}

// GetRequestID returns the request-id of the packet.
func (p *RealPathPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *RealPathPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *RealPathPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *RealPathPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeRealPath, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *RealPathPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *RealPathPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}

// StatPacket defines the SSH_FXP_STAT packet.
type StatPacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *StatPacket) Type() PacketType {
	return PacketTypeStat
}

// GetRequestID returns the request-id of the packet.
func (p *StatPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *StatPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *StatPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *StatPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeStat, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *StatPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *StatPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}

// LStatPacket defines the SSH_FXP_LSTAT packet.
type LStatPacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *LStatPacket) Type() PacketType {
	return PacketTypeLStat
}

// GetRequestID returns the request-id of the packet.
func (p *LStatPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *LStatPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *LStatPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *LStatPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeLStat, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *LStatPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *LStatPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}

// RemovePacket defines the SSH_FXP_REMOVE packet.
type RemovePacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *RemovePacket) Type() PacketType {
	return PacketTypeRemove
}

// GetRequestID returns the request-id of the packet.
func (p *RemovePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *RemovePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *RemovePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *RemovePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeRemove, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *RemovePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *RemovePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}

// RmdirPacket defines the SSH_FXP_RMDIR packet.
type RmdirPacket struct {
	RequestID uint32
	Path      string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *RmdirPacket) Type() PacketType {
	return PacketTypeRmdir
}

// GetRequestID returns the request-id of the packet.
func (p *RmdirPacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *RmdirPacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *RmdirPacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(path)
	return 1 + 4 + 4 + len(p.Path)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *RmdirPacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	return marshalIDString(b, PacketTypeRmdir, p.RequestID, p.Path)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *RmdirPacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *RmdirPacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	p.RequestID, p.Path, err = unmarshalIDString(buf)
	return err
}

// RenamePacket defines the SSH_FXP_RENAME packet.
type RenamePacket struct {
	RequestID uint32
	OldPath   string
	NewPath   string
}

// Type returns the SSH_FXP_xy value associated with this packet type.
func (p *RenamePacket) Type() PacketType {
	return PacketTypeRename
}

// GetRequestID returns the request-id of the packet.
func (p *RenamePacket) GetRequestID() uint32 { return p.RequestID }

// SetRequestID sets the request-id of the packet.
func (p *RenamePacket) SetRequestID(id uint32) { p.RequestID = id }

// MarshalSize returns the number of bytes that the packet would marshal into.
// This excludes the uint32(length).
func (p *RenamePacket) MarshalSize() int {
	// uint8(type) + uint32(request-id) + string(oldpath) + string(newpath)
	return 1 + 4 + 4 + len(p.OldPath) + 4 + len(p.NewPath)
}

// MarshalPacket returns p as a two-part binary encoding of p.
func (p *RenamePacket) MarshalPacket(b []byte) (header, payload []byte, err error) {
	buf := NewBuffer(b)
	if buf.Cap() < 9 {
		buf = NewMarshalBuffer(p.MarshalSize())
	}

	buf.StartPacket(PacketTypeRename, p.RequestID)
	buf.AppendString(p.OldPath)
	buf.AppendString(p.NewPath)

	return buf.Packet(nil)
}

// MarshalBinary returns p as the binary encoding of p.
func (p *RenamePacket) MarshalBinary() ([]byte, error) {
	return ComposePacket(p.MarshalPacket(nil))
}

// UnmarshalPacketBody unmarshals the packet body from the given Buffer.
func (p *RenamePacket) UnmarshalPacketBody(buf *Buffer) (err error) {
	*p = RenamePacket{
		RequestID: buf.ConsumeUint32(),
		OldPath:   buf.ConsumeString(),
		NewPath:   buf.ConsumeString(),
	}

	return buf.Err
}
