package sshclient

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Session opens SFTP channels and shells over a single authenticated SSH connection.
// Every channel it opens runs independently of the others.
type Session struct {
	conn *ssh.Client
	opts []Option
	log  *zap.Logger
}

// NewSession returns a Session on conn.
// The opts are applied to every channel and shell opened from the Session.
func NewSession(conn *ssh.Client, opts ...Option) (*Session, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	return &Session{
		conn: conn,
		opts: opts,
		log:  o.logger,
	}, nil
}

// openSession opens a new "session" channel.
// Channel requests other than those the caller consumes from reqs must be serviced by the caller.
func (s *Session) openSession() (ssh.Channel, <-chan *ssh.Request, error) {
	ch, reqs, err := s.conn.OpenChannel("session", nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sshclient: open session channel")
	}

	return ch, reqs, nil
}

// SFTP opens a session channel, starts the "sftp" subsystem on it, and returns a Client over it.
// The given context is only used for the channel setup and the version negotiation.
func (s *Session) SFTP(ctx context.Context) (*Client, error) {
	ch, err := s.OpenSFTPChannel(ctx)
	if err != nil {
		return nil, err
	}

	return NewClient(ch, s.opts...)
}

// OpenSFTPChannel opens a session channel, starts the "sftp" subsystem on it, and returns the raw Channel.
func (s *Session) OpenSFTPChannel(ctx context.Context) (*Channel, error) {
	ch, reqs, err := s.openSession()
	if err != nil {
		return nil, err
	}

	go ssh.DiscardRequests(reqs)

	ok, err := ch.SendRequest("subsystem", true, ssh.Marshal(struct {
		Name string
	}{
		Name: "sftp",
	}))
	if err == nil && !ok {
		err = errors.Wrap(ErrRequestRejected, "subsystem sftp")
	}
	if err != nil {
		ch.Close()
		return nil, err
	}

	// The server may report diagnostics on stderr, which must be drained for the channel to make progress.
	go func() {
		b := make([]byte, 4096)
		for {
			n, err := ch.Stderr().Read(b)
			if n > 0 {
				s.log.Info("sftp server stderr", zap.ByteString("output", b[:n]))
			}
			if err != nil {
				if err != io.EOF {
					s.log.Debug("reading sftp server stderr", zap.Error(err))
				}
				return
			}
		}
	}()

	return OpenChannel(ctx, ch, s.opts...)
}

// Shell opens a session channel and starts an interactive shell on it.
// No pseudo-terminal is requested.
func (s *Session) Shell(ctx context.Context, handlers ShellHandlers) (*Shell, error) {
	ch, reqs, err := s.openSession()
	if err != nil {
		return nil, err
	}

	return StartShell(ctx, ch, reqs, handlers, s.opts...)
}

// Close closes the underlying SSH connection, and with it every channel of the Session.
func (s *Session) Close() error {
	return s.conn.Close()
}
