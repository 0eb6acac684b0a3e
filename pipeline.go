package sshclient

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

// handshake exchanges SSH_FXP_INIT and SSH_FXP_VERSION.
// It runs before any of the pipeline goroutines are started.
func (c *Channel) handshake(ctx context.Context) error {
	initPkt := &sshfx.InitPacket{
		Version: sshfx.ProtocolVersion,
	}

	data, err := initPkt.MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := c.rwc.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	type result struct {
		pkt *sshfx.VersionPacket
		err error
	}

	// Buffered, so the reader can finish after a cancellation nobody waits for.
	resch := make(chan result, 1)

	go func() {
		m, err := sshfx.ReadMessage(c.rwc, c.opts.maxPacket)
		if err != nil {
			resch <- result{err: err}
			return
		}

		pkt, ok := m.(*sshfx.VersionPacket)
		if !ok {
			resch <- result{err: errors.Wrapf(ErrInvalidResponse, "sshclient: expected %v, got %v", sshfx.PacketTypeVersion, m.Type())}
			return
		}

		if pkt.Version != sshfx.ProtocolVersion {
			resch <- result{err: errors.Errorf("sshclient: unexpected server version: got %v, want %v", pkt.Version, sshfx.ProtocolVersion)}
			return
		}

		resch <- result{pkt: pkt}
	}()

	var verPkt *sshfx.VersionPacket

	select {
	case res := <-resch:
		if res.err != nil {
			return res.err
		}
		verPkt = res.pkt

	case <-ctx.Done():
		// Closing unblocks the reader when the transport allows it.
		// The reader is not waited for.
		c.rwc.Close()
		return ctx.Err()
	}

	c.exts = make(map[string]string)
	for _, ext := range verPkt.Extensions {
		c.exts[ext.Name] = ext.Data
	}

	return nil
}

// post hands ev to the owning goroutine.
// It returns false if the channel has already closed, and the event was not delivered.
func (c *Channel) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// loop is the owning goroutine of the channel.
// Every state machine event, every request id and every change to the pending requests happens here.
func (c *Channel) loop() {
	defer func() {
		close(c.writeq)
		c.pages.Free()
		close(c.done)
	}()

	// Outbound requests waiting for the writer.
	// Unbounded, so that the loop never blocks on a slow transport.
	var queue []sshfx.Identified

	for c.sm.state != stateClosed {
		var (
			writeq chan<- sshfx.Identified
			next   sshfx.Identified
		)

		if len(queue) > 0 {
			writeq, next = c.writeq, queue[0]
		}

		select {
		case ev := <-c.events:
			queue = c.dispatch(ev, queue)

		case writeq <- next:
			queue[0] = nil
			queue = queue[1:]
		}
	}

	if len(queue) > 0 {
		c.log.Debug("dropping unsent requests", zap.Int("count", len(queue)))
	}
}

func (c *Channel) dispatch(ev event, queue []sshfx.Identified) []sshfx.Identified {
	switch ev := ev.(type) {
	case requestMessageEvent:
		if c.sm.state == stateActive {
			ev.msg.SetRequestID(c.ids.Next())
		}

	case disconnectedEvent:
		c.closeTransport()
		c.disconnected(ev.cause)
		return queue
	}

	act := c.sm.handle(ev)

	switch act.kind {
	case actionEmitMessage:
		return append(queue, act.msg)

	case actionDisconnect:
		c.closeTransport()
		c.disconnected(nil)
	}

	if ev, ok := ev.(messageFailedEvent); ok {
		// The transport is broken, nothing later can get through either.
		err := &TransportError{Op: "write", Err: ev.err}
		c.log.Error("write failed", zap.Uint32("request_id", ev.id), zap.Error(ev.err))

		c.closeTransport()
		c.disconnected(err)
	}

	return queue
}

// disconnected drives the state machine to closed with the given cause.
// It must only be called from the owning goroutine.
func (c *Channel) disconnected(cause error) {
	if c.sm.state == stateClosed {
		return
	}

	c.err = cause
	c.sm.handle(disconnectedEvent{cause: cause})
}

func (c *Channel) closeTransport() {
	c.closeOnce.Do(func() {
		if err := c.rwc.Close(); err != nil {
			c.log.Debug("closing transport", zap.Error(err))
		}
	})
}

// reader feeds the transport into the parser, and every parsed message into the loop.
func (c *Channel) reader() {
	parser := sshfx.NewParser(c.opts.maxPacket)
	b := make([]byte, c.opts.maxPacket)

	for {
		n, err := c.rwc.Read(b)
		if n > 0 {
			parser.Write(b[:n])

			for {
				m, derr := parser.Next()
				if derr != nil {
					c.log.Error("decoding inbound stream", zap.Error(derr))

					c.closeTransport()
					c.post(disconnectedEvent{cause: derr})
					return
				}

				if m == nil {
					break
				}

				if ce := c.log.Check(zap.DebugLevel, "packet received"); ce != nil {
					ce.Write(zap.Stringer("type", m.Type()), zap.Int("buffered", parser.Buffered()))
				}

				if !c.post(inboundMessageEvent{msg: m}) {
					return
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				c.log.Debug("transport closed by remote")
			} else {
				c.log.Debug("reading transport", zap.Error(err))
			}

			c.post(disconnectedEvent{cause: err})
			return
		}
	}
}

// writer marshals and writes every request handed over by the loop, one at a time.
func (c *Channel) writer() {
	for msg := range c.writeq {
		id := msg.GetRequestID()

		err := c.write(id, msg)

		c.pages.ReleasePages(id)

		var ev event = messageSentEvent{id: id}
		if err != nil {
			ev = messageFailedEvent{id: id, err: err}
		}

		if !c.post(ev) {
			return
		}
	}
}

func (c *Channel) write(id uint32, msg sshfx.Identified) error {
	header, payload, err := msg.MarshalPacket(c.pages.GetPage(id))
	if err != nil {
		return err
	}

	if len(payload) > 0 {
		header = append(header, payload...)
	}

	if ce := c.log.Check(zap.DebugLevel, "packet sent"); ce != nil {
		ce.Write(zap.Stringer("type", msg.Type()), zap.Uint32("request_id", id), zap.Int("length", len(header)))
	}

	_, err = c.rwc.Write(header)
	return err
}
