package sshclient

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

type recorded struct {
	calls int
	resp  sshfx.Message
	err   error
}

func (r *recorded) resolve(resp sshfx.Message, err error) {
	r.calls++
	r.resp, r.err = resp, err
}

func (r *recorded) ack(err error) {
	r.calls++
	r.err = err
}

func newActiveStateMachine(t *testing.T) *clientStateMachine {
	t.Helper()

	m := newClientStateMachine(zaptest.NewLogger(t))

	var started recorded
	assert.Equal(t, action{}, m.handle(startEvent{ack: started.ack}))
	require.Equal(t, 1, started.calls)
	require.NoError(t, started.err)
	require.Equal(t, stateActive, m.state)

	return m
}

func TestStateMachineRequestBeforeStart(t *testing.T) {
	m := newClientStateMachine(zaptest.NewLogger(t))

	var r recorded
	act := m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 1, Path: "/"}, resolve: r.resolve})

	assert.Equal(t, action{}, act)
	assert.Equal(t, 1, r.calls)
	assert.ErrorIs(t, r.err, ErrConnectionNotActive)
	assert.Equal(t, 0, m.outstanding())
}

func TestStateMachineStartTwice(t *testing.T) {
	m := newActiveStateMachine(t)

	var again recorded
	m.handle(startEvent{ack: again.ack})
	assert.Equal(t, 1, again.calls)
	assert.NoError(t, again.err)
	assert.Equal(t, stateActive, m.state)

	m.handle(disconnectedEvent{})

	var late recorded
	m.handle(startEvent{ack: late.ack})
	assert.Equal(t, 1, late.calls)
	assert.ErrorIs(t, late.err, ErrConnectionNotActive)
	assert.Equal(t, stateClosed, m.state)
}

func TestStateMachinePermutedResponses(t *testing.T) {
	m := newActiveStateMachine(t)

	const n = 5
	results := make([]recorded, n)

	for i := range results {
		msg := &sshfx.StatPacket{RequestID: uint32(i + 1), Path: "/tmp"}

		act := m.handle(requestMessageEvent{msg: msg, resolve: results[i].resolve})
		require.Equal(t, action{kind: actionEmitMessage, msg: msg}, act)
	}

	assert.Equal(t, n, m.outstanding())

	for _, i := range []int{3, 0, 4, 2, 1} {
		resp := &sshfx.AttrsPacket{RequestID: uint32(i + 1)}
		resp.Attrs.SetSize(uint64(i))

		m.handle(inboundMessageEvent{msg: resp})

		require.Equal(t, 1, results[i].calls)
		require.NoError(t, results[i].err)
		assert.Equal(t, resp, results[i].resp)
	}

	assert.Equal(t, 0, m.outstanding())

	for i := range results {
		assert.Equal(t, 1, results[i].calls, "request %d resolved more than once", i+1)
	}
}

func TestStateMachineDuplicatePendingID(t *testing.T) {
	m := newActiveStateMachine(t)

	var r recorded
	m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 7}, resolve: r.resolve})

	assert.Panics(t, func() {
		m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 7}, resolve: r.resolve})
	})
}

func TestStateMachineOrphanResponse(t *testing.T) {
	m := newActiveStateMachine(t)

	var r recorded
	m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 1}, resolve: r.resolve})

	assert.Equal(t, action{}, m.handle(inboundMessageEvent{msg: &sshfx.StatusPacket{RequestID: 99}}))
	assert.Equal(t, action{}, m.handle(inboundMessageEvent{msg: &sshfx.VersionPacket{Version: 3}}))
	// A request type echoing a pending id is not a response.
	assert.Equal(t, action{}, m.handle(inboundMessageEvent{msg: &sshfx.StatPacket{RequestID: 1}}))

	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 1, m.outstanding())
	assert.Equal(t, stateActive, m.state)
}

func TestStateMachineMessageFailed(t *testing.T) {
	m := newActiveStateMachine(t)

	var r recorded
	m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 1}, resolve: r.resolve})

	writeErr := errors.New("broken pipe")
	m.handle(messageFailedEvent{id: 1, err: writeErr})

	require.Equal(t, 1, r.calls)

	var transportErr *TransportError
	require.ErrorAs(t, r.err, &transportErr)
	assert.Equal(t, "write", transportErr.Op)
	assert.ErrorIs(t, r.err, writeErr)
	assert.Equal(t, 0, m.outstanding())

	// A late response to the failed request is an orphan.
	m.handle(inboundMessageEvent{msg: &sshfx.StatusPacket{RequestID: 1}})
	assert.Equal(t, 1, r.calls)
}

func TestStateMachineMessageSent(t *testing.T) {
	m := newActiveStateMachine(t)

	var r recorded
	m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 1}, resolve: r.resolve})

	assert.Equal(t, action{}, m.handle(messageSentEvent{id: 1}))
	assert.Equal(t, 0, r.calls)
	assert.Equal(t, 1, m.outstanding())
}

func TestStateMachineCloseWithPending(t *testing.T) {
	m := newActiveStateMachine(t)

	const k = 4
	results := make([]recorded, k)

	for i := range results {
		m.handle(requestMessageEvent{msg: &sshfx.ReadPacket{RequestID: uint32(i + 1)}, resolve: results[i].resolve})
	}

	var ack recorded
	act := m.handle(requestDisconnectionEvent{ack: ack.ack})
	require.Equal(t, action{kind: actionDisconnect}, act)
	assert.Equal(t, stateDisconnecting, m.state)
	assert.Equal(t, 0, ack.calls, "disconnection acknowledged before the transport closed")

	// Requests while disconnecting fail immediately, and emit nothing.
	var late recorded
	assert.Equal(t, action{}, m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 100}, resolve: late.resolve}))
	assert.ErrorIs(t, late.err, ErrConnectionNotActive)

	// A second request to disconnect queues its ack, and does not disconnect again.
	var second recorded
	assert.Equal(t, action{}, m.handle(requestDisconnectionEvent{ack: second.ack}))
	assert.Equal(t, 0, second.calls)

	assert.Equal(t, action{}, m.handle(disconnectedEvent{}))
	assert.Equal(t, stateClosed, m.state)

	for i := range results {
		require.Equal(t, 1, results[i].calls)
		assert.ErrorIs(t, results[i].err, ErrConnectionClosed)

		var closedErr *ClosedError
		require.ErrorAs(t, results[i].err, &closedErr)
		assert.NoError(t, closedErr.Err)
	}

	assert.Equal(t, 0, m.outstanding())
	assert.Equal(t, 1, ack.calls)
	assert.NoError(t, ack.err)
	assert.Equal(t, 1, second.calls)

	// Nothing further is emitted once closed.
	var after recorded
	assert.Equal(t, action{}, m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 200}, resolve: after.resolve}))
	assert.ErrorIs(t, after.err, ErrConnectionNotActive)

	var closedAck recorded
	assert.Equal(t, action{}, m.handle(requestDisconnectionEvent{ack: closedAck.ack}))
	assert.Equal(t, 1, closedAck.calls)
	assert.NoError(t, closedAck.err)

	assert.Equal(t, action{}, m.handle(disconnectedEvent{cause: errors.New("late")}))
	for i := range results {
		assert.Equal(t, 1, results[i].calls)
	}
}

func TestStateMachineDisconnectedWithCause(t *testing.T) {
	m := newActiveStateMachine(t)

	var r recorded
	m.handle(requestMessageEvent{msg: &sshfx.StatPacket{RequestID: 1}, resolve: r.resolve})

	cause := &sshfx.DecodeError{Length: 1 << 20, Err: sshfx.ErrLongPacket}
	m.handle(disconnectedEvent{cause: cause})

	assert.Equal(t, stateClosed, m.state)
	require.Equal(t, 1, r.calls)
	assert.ErrorIs(t, r.err, ErrConnectionClosed)
	assert.ErrorIs(t, r.err, sshfx.ErrLongPacket)
}
