package sshclient

import (
	"fmt"

	"go.uber.org/zap"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

type connectionState int

const (
	stateAwaitingStart connectionState = iota
	stateActive
	stateDisconnecting
	stateClosed
)

func (s connectionState) String() string {
	switch s {
	case stateAwaitingStart:
		return "awaiting-start"
	case stateActive:
		return "active"
	case stateDisconnecting:
		return "disconnecting"
	case stateClosed:
		return "closed"
	}

	return fmt.Sprintf("connectionState(%d)", int(s))
}

// pendingRequest is the continuation of a request awaiting its response.
// It is called exactly once, with either the response or an error.
type pendingRequest func(resp sshfx.Message, err error)

type event interface {
	isEvent()
}

type (
	startEvent struct {
		ack func(error)
	}

	requestMessageEvent struct {
		msg     sshfx.Identified
		resolve pendingRequest
	}

	messageSentEvent struct {
		id uint32
	}

	messageFailedEvent struct {
		id  uint32
		err error
	}

	inboundMessageEvent struct {
		msg sshfx.Message
	}

	requestDisconnectionEvent struct {
		ack func(error)
	}

	disconnectedEvent struct {
		cause error
	}
)

func (startEvent) isEvent()                {}
func (requestMessageEvent) isEvent()       {}
func (messageSentEvent) isEvent()          {}
func (messageFailedEvent) isEvent()        {}
func (inboundMessageEvent) isEvent()       {}
func (requestDisconnectionEvent) isEvent() {}
func (disconnectedEvent) isEvent()         {}

type actionKind int

const (
	actionNone actionKind = iota
	actionEmitMessage
	actionDisconnect
)

// action is what the driver must do after the state machine handled an event.
type action struct {
	kind actionKind
	msg  sshfx.Identified
}

// clientStateMachine tracks the lifecycle of an SFTP channel and every request awaiting a response.
// It performs no I/O, and must only be used from the owning goroutine of its channel.
type clientStateMachine struct {
	state   connectionState
	pending map[uint32]pendingRequest

	// acks of requestDisconnection, fulfilled once closed.
	disconnectAcks []func(error)

	log *zap.Logger
}

func newClientStateMachine(log *zap.Logger) *clientStateMachine {
	return &clientStateMachine{
		pending: make(map[uint32]pendingRequest),
		log:     log,
	}
}

func (m *clientStateMachine) handle(ev event) action {
	switch ev := ev.(type) {
	case startEvent:
		switch m.state {
		case stateAwaitingStart:
			m.state = stateActive
			ev.ack(nil)
		case stateActive:
			ev.ack(nil)
		default:
			ev.ack(ErrConnectionNotActive)
		}

	case requestMessageEvent:
		if m.state != stateActive {
			ev.resolve(nil, ErrConnectionNotActive)
			return action{}
		}

		id := ev.msg.GetRequestID()
		if _, exists := m.pending[id]; exists {
			panic(fmt.Sprintf("sshclient: request id %d allocated while still pending", id))
		}

		m.pending[id] = ev.resolve
		return action{kind: actionEmitMessage, msg: ev.msg}

	case messageSentEvent:
		m.log.Debug("request written", zap.Uint32("request_id", ev.id))

	case messageFailedEvent:
		if resolve, ok := m.pending[ev.id]; ok {
			delete(m.pending, ev.id)
			resolve(nil, &TransportError{Op: "write", Err: ev.err})
		}

	case inboundMessageEvent:
		resp, ok := ev.msg.(sshfx.Identified)
		if !ok || !ev.msg.Type().IsResponse() {
			m.log.Warn("dropping unexpected packet", zap.Stringer("type", ev.msg.Type()))
			return action{}
		}

		id := resp.GetRequestID()

		resolve, ok := m.pending[id]
		if !ok {
			m.log.Warn("dropping response to unknown request",
				zap.Uint32("request_id", id),
				zap.Stringer("type", ev.msg.Type()),
			)
			return action{}
		}

		delete(m.pending, id)
		resolve(ev.msg, nil)

	case requestDisconnectionEvent:
		switch m.state {
		case stateClosed:
			ev.ack(nil)
		case stateDisconnecting:
			m.disconnectAcks = append(m.disconnectAcks, ev.ack)
		default:
			m.state = stateDisconnecting
			m.disconnectAcks = append(m.disconnectAcks, ev.ack)
			return action{kind: actionDisconnect}
		}

	case disconnectedEvent:
		if m.state == stateClosed {
			return action{}
		}

		m.state = stateClosed

		pending := m.pending
		m.pending = make(map[uint32]pendingRequest)

		for _, resolve := range pending {
			resolve(nil, &ClosedError{Err: ev.cause})
		}

		acks := m.disconnectAcks
		m.disconnectAcks = nil

		for _, ack := range acks {
			ack(nil)
		}

	default:
		panic(fmt.Sprintf("sshclient: unknown event %T", ev))
	}

	return action{}
}

// outstanding returns the number of requests awaiting a response.
func (m *clientStateMachine) outstanding() int {
	return len(m.pending)
}
