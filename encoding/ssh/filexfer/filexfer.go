// Package sshfx implements the wire encoding for secsh-filexfer version 3 as described in https://tools.ietf.org/html/draft-ietf-secsh-filexfer-02
//
// Every packet is framed as a uint32(length) followed by a uint8(type) and the packet body.
// All packets other than SSH_FXP_INIT and SSH_FXP_VERSION carry a uint32(request-id) directly after the type.
package sshfx

// Message defines the behavior of an SFTP packet.
//
// It is implemented by pointers to every packet type of this package,
// and is the tagged union over all messages a client sends or receives.
type Message interface {
	// Type returns the SSH_FXP_xy value associated with the specific packet.
	Type() PacketType

	// MarshalSize returns the number of bytes the packet would marshal into,
	// excluding the uint32(length).
	MarshalSize() int

	// MarshalPacket is the primary intended way to encode a packet.
	//
	// An optional buffer may be given in b.
	// If the buffer has a minimum capacity of 9, it shall be truncated and used to marshal the header into.
	//
	// It shall return the main body of the encoded packet in header,
	// and may optionally return an additional payload to be written immediately after the header.
	//
	// It shall encode in the first 4-bytes of the header the proper length of the rest of the header+payload.
	MarshalPacket(b []byte) (header, payload []byte, err error)

	// UnmarshalPacketBody decodes a packet body from the given Buffer.
	// It is assumed that the uint32(length) and uint8(type) have already been consumed,
	// the request-id of packets that carry one has not.
	UnmarshalPacketBody(buf *Buffer) error
}

// Identified is a Message that carries a request-id.
// Requests carry the id assigned by the client, responses echo the id of the request they answer.
type Identified interface {
	Message

	GetRequestID() uint32
	SetRequestID(id uint32)
}

// ComposePacket converts returns from MarshalPacket into an equivalent call to MarshalBinary.
func ComposePacket(header, payload []byte, err error) ([]byte, error) {
	return append(header, payload...), err
}

// Default length values,
// Defined in draft-ietf-secsh-filexfer-02 section 3.
const (
	DefaultMaxPacketLength = 34000
	DefaultMaxDataLength   = 32768

	// MaxPacketLengthOverhead is the room kept in a packet above its data for the header fields.
	MaxPacketLengthOverhead = DefaultMaxPacketLength - DefaultMaxDataLength
)

// ProtocolVersion is the only version of the protocol this package speaks.
const ProtocolVersion = 3
