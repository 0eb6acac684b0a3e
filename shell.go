package sshclient

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

// Stream identifies which output of a shell a chunk of data came from.
type Stream int

// The output streams of a shell.
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	}

	return "unknown"
}

// ShellHandlers receive the output and the end of a Shell.
//
// The handlers are called from a single goroutine, one at a time, in the order the data arrived per stream.
// OnClose is called exactly once, after the last OnData.
type ShellHandlers struct {
	OnData  func(stream Stream, p []byte)
	OnClose func(err *ClosedError)
}

type shellChunk struct {
	stream Stream
	p      []byte
}

// Shell is an interactive shell running on an SSH session channel.
type Shell struct {
	ch       ssh.Channel
	handlers ShellHandlers
	log      *zap.Logger

	mu         sync.Mutex
	err        error
	exitStatus *int

	done chan struct{}
}

// StartShell requests a shell on the session channel ch, and starts delivering its output to handlers.
// The reqs are the channel requests of ch, as returned by ssh.Conn.OpenChannel.
//
// It returns once the server has acknowledged the shell request.
// If ch ends before that, StartShell returns ErrEndedChannel.
func StartShell(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request, handlers ShellHandlers, opts ...Option) (*Shell, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	if handlers.OnData == nil {
		handlers.OnData = func(Stream, []byte) {}
	}

	if handlers.OnClose == nil {
		handlers.OnClose = func(*ClosedError) {}
	}

	s := &Shell{
		ch:       ch,
		handlers: handlers,
		log:      o.logger.With(zap.String("shell", newCorrelationID())),
		done:     make(chan struct{}),
	}

	go s.serveRequests(reqs)

	if err := s.requestShell(ctx); err != nil {
		ch.Close()
		return nil, err
	}

	s.start()

	return s, nil
}

// requestShell sends the "shell" channel request, and waits for its acknowledgement.
func (s *Shell) requestShell(ctx context.Context) error {
	ack := newFuture[struct{}]()

	go func() {
		ok, err := s.ch.SendRequest("shell", true, nil)
		switch {
		case err != nil:
			s.log.Debug("shell request", zap.Error(err))
			ack.fail(ErrEndedChannel)
		case !ok:
			ack.fail(errors.Wrap(ErrRequestRejected, "shell"))
		default:
			ack.resolve(struct{}{}, nil)
		}
	}()

	_, err := ack.Wait(ctx)
	return err
}

func (s *Shell) serveRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "exit-status":
			var msg struct {
				Status uint32
			}

			if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
				s.log.Warn("malformed exit-status", zap.Error(err))
				break
			}

			status := int(msg.Status)

			s.mu.Lock()
			s.exitStatus = &status
			s.mu.Unlock()

		case "exit-signal":
			var msg struct {
				Signal     string
				CoreDumped bool
				Error      string
				Lang       string
			}

			if err := ssh.Unmarshal(req.Payload, &msg); err != nil {
				s.log.Warn("malformed exit-signal", zap.Error(err))
				break
			}

			s.log.Info("shell killed by signal", zap.String("signal", msg.Signal), zap.String("message", msg.Error))

		default:
			s.log.Debug("ignoring channel request", zap.String("type", req.Type))
		}

		if req.WantReply {
			req.Reply(false, nil)
		}
	}
}

// start runs the demultiplexer: one reader per stream, funneled into a single dispatching goroutine.
func (s *Shell) start() {
	data := make(chan shellChunk)

	var (
		g       errgroup.Group
		readErr error
	)

	g.Go(func() error { return s.pump(Stdout, s.ch, data) })
	g.Go(func() error { return s.pump(Stderr, s.ch.Stderr(), data) })

	go func() {
		readErr = g.Wait()
		close(data)
	}()

	go func() {
		for chunk := range data {
			s.handlers.OnData(chunk.stream, chunk.p)
		}

		s.finish(readErr)
	}()
}

func (s *Shell) pump(stream Stream, r io.Reader, data chan<- shellChunk) error {
	b := make([]byte, 32*1024)

	for {
		n, err := r.Read(b)
		if n > 0 {
			data <- shellChunk{
				stream: stream,
				p:      append([]byte(nil), b[:n]...),
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}

			// Closing the channel ends the other stream too.
			err = errors.Wrapf(err, "reading %v", stream)
			s.fail(err)
			return err
		}
	}
}

// fail records err as the cause of the end of the shell, unless one was already recorded,
// and closes the channel.
func (s *Shell) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()

	s.ch.Close()
}

func (s *Shell) finish(readErr error) {
	if readErr != nil {
		s.log.Debug("shell output ended", zap.Error(readErr))
		s.fail(readErr)
	} else {
		s.ch.Close()
	}

	s.mu.Lock()
	err := s.err
	s.mu.Unlock()

	s.handlers.OnClose(&ClosedError{Err: err})
	close(s.done)
}

// Write writes p to the standard input of the shell.
func (s *Shell) Write(p []byte) (int, error) {
	n, err := s.ch.Write(p)
	if err != nil {
		err = &TransportError{Op: "write", Err: err}
		s.fail(err)
	}

	return n, err
}

// CloseWrite signals the end of the standard input of the shell.
// Output keeps being delivered until the server ends the shell.
func (s *Shell) CloseWrite() error {
	if err := s.ch.CloseWrite(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}

	return nil
}

// Close closes the shell channel.
// The OnClose handler is still called once the remaining output has been delivered.
func (s *Shell) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}

	if err := s.ch.Close(); err != nil && err != io.EOF {
		return &TransportError{Op: "close", Err: err}
	}

	return nil
}

// Done returns a channel that is closed after OnClose has returned.
func (s *Shell) Done() <-chan struct{} {
	return s.done
}

// Err returns the first error that ended the shell, or nil.
func (s *Shell) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// ExitStatus returns the exit status reported by the server, if any.
func (s *Shell) ExitStatus() (status int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exitStatus == nil {
		return 0, false
	}

	return *s.exitStatus, true
}
