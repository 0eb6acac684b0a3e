package sshfx

import (
	"encoding/binary"
)

// Parser splits a byte stream into Messages.
//
// Bytes are handed to the Parser with Write as they arrive from the transport,
// and complete frames are taken out with Next.
// A Parser is not safe for concurrent use.
type Parser struct {
	maxLength uint32
	buf       []byte
}

// NewParser returns a Parser that rejects any frame whose uint32(length) exceeds maxLength.
func NewParser(maxLength uint32) *Parser {
	return &Parser{
		maxLength: maxLength,
	}
}

// Write appends b to the buffered stream. It never returns an error.
func (p *Parser) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// Buffered returns the number of bytes held that have not yet been returned as a Message.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Next returns the next complete Message from the buffered stream.
// It returns nil, nil if the buffered data does not yet hold a complete frame.
//
// Any error returned is a *DecodeError, and the stream cannot be resumed after it.
func (p *Parser) Next() (Message, error) {
	if len(p.buf) < 4 {
		return nil, nil
	}

	length := binary.BigEndian.Uint32(p.buf)
	if err := checkLength(length, p.maxLength); err != nil {
		return nil, err
	}

	end := 4 + int(length)
	if len(p.buf) < end {
		return nil, nil
	}

	m, err := Unmarshal(p.buf[4:end])

	n := copy(p.buf, p.buf[end:])
	p.buf = p.buf[:n]

	return m, err
}
