package sshclient

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

// Channel is an SFTP protocol engine running over a single transport,
// usually an SSH session channel with the "sftp" subsystem started.
//
// Every operation returns a Future immediately.
// Requests are pipelined, and responses may resolve their futures in any order.
// Once the channel has closed, every outstanding future has resolved,
// and every later operation resolves at once with ErrConnectionNotActive.
//
// The methods of Channel are safe for concurrent use.
type Channel struct {
	rwc  io.ReadWriteCloser
	opts options
	log  *zap.Logger
	exts map[string]string

	events chan event
	writeq chan sshfx.Identified
	done   chan struct{}

	closeOnce sync.Once

	// owned by the loop goroutine
	sm    *clientStateMachine
	ids   idAllocator
	err   error
	pages *pageAllocator
}

// OpenChannel performs the SFTP version negotiation over rwc, and starts the channel.
// The given context is only used for the negotiation.
//
// The Channel takes ownership of rwc, and closes it when the channel ends.
func OpenChannel(ctx context.Context, rwc io.ReadWriteCloser, opts ...Option) (*Channel, error) {
	o := defaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	log := o.logger.With(zap.String("channel", newCorrelationID()))

	c := &Channel{
		rwc:  rwc,
		opts: o,
		log:  log,

		events: make(chan event),
		writeq: make(chan sshfx.Identified),
		done:   make(chan struct{}),

		sm:    newClientStateMachine(log),
		pages: newPageAllocator(int(o.maxPacket)),
	}

	if err := c.handshake(ctx); err != nil {
		rwc.Close()
		return nil, err
	}

	go c.loop()
	go c.writer()
	go c.reader()

	started := newFuture[struct{}]()
	if !c.post(startEvent{ack: func(err error) { started.resolve(struct{}{}, err) }}) {
		started.fail(ErrConnectionNotActive)
	}

	if _, err := started.Get(); err != nil {
		return nil, err
	}

	c.log.Debug("sftp channel active", zap.Any("extensions", c.exts))

	return c, nil
}

// Extension returns the data of the named extension announced by the server in SSH_FXP_VERSION.
func (c *Channel) Extension(name string) (data string, ok bool) {
	data, ok = c.exts[name]
	return data, ok
}

// Done returns a channel that is closed once the channel has ended,
// and every outstanding operation has resolved.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the cause of the end of the channel.
// It returns nil while the channel is active, and after a requested Close.
func (c *Channel) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close requests the channel to close.
// The returned future resolves once the transport is closed,
// and every outstanding operation has resolved with a *ClosedError.
func (c *Channel) Close() *Future[struct{}] {
	f := newFuture[struct{}]()

	ack := func(err error) {
		f.resolve(struct{}{}, err)
	}

	if !c.post(requestDisconnectionEvent{ack: ack}) {
		// Already closed, which is what was asked for.
		ack(nil)
	}

	return f
}

// request hands msg to the loop, and narrows the response into a T once it arrives.
func request[T any](c *Channel, msg sshfx.Identified, narrow func(sshfx.Message) (T, error)) *Future[T] {
	f := newFuture[T]()

	resolve := func(resp sshfx.Message, err error) {
		if err != nil {
			f.fail(err)
			return
		}

		f.resolve(narrow(resp))
	}

	if !c.post(requestMessageEvent{msg: msg, resolve: resolve}) {
		resolve(nil, ErrConnectionNotActive)
	}

	return f
}

// expect narrows a response to the packet type P.
// A failure status is the server's explicit answer, any other packet type is invalid.
func expect[P sshfx.Message](resp sshfx.Message) (P, error) {
	if p, ok := resp.(P); ok {
		return p, nil
	}

	var zero P

	if status, ok := resp.(*sshfx.StatusPacket); ok && !status.StatusCode.Done() {
		return zero, statusError(status)
	}

	return zero, ErrInvalidResponse
}

// expectStatus narrows a response to a status that ends the operation without failure.
func expectStatus(resp sshfx.Message) (*sshfx.StatusPacket, error) {
	status, ok := resp.(*sshfx.StatusPacket)
	if !ok {
		return nil, ErrInvalidResponse
	}

	if !status.StatusCode.Done() {
		return nil, statusError(status)
	}

	return status, nil
}

// ReadResult is the result of a ReadFile.
// Exactly one of Data or Status is set.
// Status is set when the server answered with a status instead of data, usually SSH_FX_EOF.
type ReadResult struct {
	Data   []byte
	Status *sshfx.StatusPacket
}

// ReadDirResult is the result of a ReadDir.
// Exactly one of Entries or Status is set.
// Status is set when the server answered with a status instead of names, usually SSH_FX_EOF.
type ReadDirResult struct {
	Entries []*sshfx.NameEntry
	Status  *sshfx.StatusPacket
}

// OpenFile opens the file at path with the SSH_FXF_* flags pflags.
// The attrs are applied if the file is created.
func (c *Channel) OpenFile(path string, pflags uint32, attrs sshfx.Attributes) *Future[*sshfx.HandlePacket] {
	return request(c, &sshfx.OpenPacket{
		Filename: path,
		PFlags:   pflags,
		Attrs:    attrs,
	}, expect[*sshfx.HandlePacket])
}

// CloseFile closes a file or directory handle.
func (c *Channel) CloseFile(handle string) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.ClosePacket{
		Handle: handle,
	}, expectStatus)
}

// ReadFile reads up to length bytes at offset from handle.
//
// The server may return fewer bytes than requested.
// The result holds exactly what was received, no further request is made to fill it.
func (c *Channel) ReadFile(handle string, offset uint64, length uint32) *Future[ReadResult] {
	return request(c, &sshfx.ReadPacket{
		Handle: handle,
		Offset: offset,
		Length: length,
	}, func(resp sshfx.Message) (ReadResult, error) {
		if data, ok := resp.(*sshfx.DataPacket); ok {
			return ReadResult{Data: data.Data}, nil
		}

		status, err := expectStatus(resp)
		if err != nil {
			return ReadResult{}, err
		}

		return ReadResult{Status: status}, nil
	})
}

// WriteFile writes data at offset to handle.
// The data is not split, it must fit within the server's packet length limit.
func (c *Channel) WriteFile(handle string, offset uint64, data []byte) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.WritePacket{
		Handle: handle,
		Offset: offset,
		Data:   data,
	}, expectStatus)
}

// Mkdir creates the directory at path with the given attributes.
func (c *Channel) Mkdir(path string, attrs sshfx.Attributes) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.MkdirPacket{
		Path:  path,
		Attrs: attrs,
	}, expectStatus)
}

// OpenDir opens the directory at path for reading.
func (c *Channel) OpenDir(path string) *Future[*sshfx.HandlePacket] {
	return request(c, &sshfx.OpenDirPacket{
		Path: path,
	}, expect[*sshfx.HandlePacket])
}

// ReadDir reads the next batch of entries from a directory handle.
func (c *Channel) ReadDir(handle string) *Future[ReadDirResult] {
	return request(c, &sshfx.ReadDirPacket{
		Handle: handle,
	}, func(resp sshfx.Message) (ReadDirResult, error) {
		if name, ok := resp.(*sshfx.NamePacket); ok {
			return ReadDirResult{Entries: name.Entries}, nil
		}

		status, err := expectStatus(resp)
		if err != nil {
			return ReadDirResult{}, err
		}

		return ReadDirResult{Status: status}, nil
	})
}

// RealPath asks the server to canonicalize path.
func (c *Channel) RealPath(path string) *Future[*sshfx.NamePacket] {
	return request(c, &sshfx.RealPathPacket{
		Path: path,
	}, expect[*sshfx.NamePacket])
}

// Stat returns the attributes of path, following symbolic links.
func (c *Channel) Stat(path string) *Future[*sshfx.AttrsPacket] {
	return request(c, &sshfx.StatPacket{
		Path: path,
	}, expect[*sshfx.AttrsPacket])
}

// Lstat returns the attributes of path, without following symbolic links.
func (c *Channel) Lstat(path string) *Future[*sshfx.AttrsPacket] {
	return request(c, &sshfx.LStatPacket{
		Path: path,
	}, expect[*sshfx.AttrsPacket])
}

// Fstat returns the attributes of an open handle.
func (c *Channel) Fstat(handle string) *Future[*sshfx.AttrsPacket] {
	return request(c, &sshfx.FStatPacket{
		Handle: handle,
	}, expect[*sshfx.AttrsPacket])
}

// Remove removes the file at path.
func (c *Channel) Remove(path string) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.RemovePacket{
		Path: path,
	}, expectStatus)
}

// Rmdir removes the empty directory at path.
func (c *Channel) Rmdir(path string) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.RmdirPacket{
		Path: path,
	}, expectStatus)
}

// Rename renames oldpath to newpath.
func (c *Channel) Rename(oldpath, newpath string) *Future[*sshfx.StatusPacket] {
	return request(c, &sshfx.RenamePacket{
		OldPath: oldpath,
		NewPath: newpath,
	}, expectStatus)
}
