package sshclient

import (
	"io"
	"io/fs"
	"os"
	"path"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

type handle struct {
	value  atomic.Pointer[string]
	closed chan struct{}
}

func (h *handle) init(handle string) {
	h.value.Store(&handle)
	h.closed = make(chan struct{})
}

func (h *handle) get() (handle string, cancel <-chan struct{}, err error) {
	p := h.value.Load()
	if p == nil {
		return "", nil, fs.ErrClosed
	}
	return *p, h.closed, nil
}

func (h *handle) close(cl *Client) error {
	// The server forgets the handle whatever the close returns,
	// so it is invalidated locally before anything is sent.
	handle := h.value.Swap(nil)
	if handle == nil {
		return fs.ErrClosed
	}

	// Requests started before the swap stop issuing new chunks once this is closed.
	close(h.closed)

	_, err := cl.ch.CloseFile(*handle).Get()
	return err
}

// File represents a remote file.
//
// ReadAt and WriteAt are safe for concurrent use.
// Read, Write and Seek share the file offset, and are serialized.
type File struct {
	cl   *Client
	name string

	handle handle

	mu     sync.Mutex
	offset int64
}

// Open opens the named file for reading.
// If successful, methods on the returned file can be used for reading;
// the associated file descriptor has mode O_RDONLY.
func (cl *Client) Open(name string) (*File, error) {
	return cl.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates the named file.
// If the file already exists, it is truncated.
// If the file does not exist, it is created with mode 0666 (before umask).
// If successful, methods on the returned File can be used for I/O;
// the associated file descriptor has mode O_RDWR.
func (cl *Client) Create(name string) (*File, error) {
	return cl.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// OpenFile is the generalized open call; most users will use Open or Create instead.
// It opens the named file with specified flag (O_RDONLY etc.).
// If the file does not exist, and the O_CREATE flag is passed, it is created with mode perm (before umask).
func (cl *Client) OpenFile(name string, flag int, perm fs.FileMode) (*File, error) {
	var attrs sshfx.Attributes
	if flag&os.O_CREATE != 0 {
		attrs.SetPermissions(fromFileMode(perm.Perm()).Perm())
	}

	pkt, err := cl.ch.OpenFile(name, toPFlags(flag), attrs).Get()
	if err != nil {
		return nil, wrapPathError("open", name, err)
	}

	f := &File{
		cl:   cl,
		name: name,
	}
	f.handle.init(pkt.Handle)

	if flag&os.O_APPEND != 0 {
		// SSH_FXF_APPEND is advisory, and servers ignore the offset of writes differently.
		// Start at the end, so sequential writes land there either way.
		if fi, err := f.Stat(); err == nil {
			f.offset = fi.Size()
		}
	}

	return f, nil
}

// Name returns the name of the file as presented to Open or Create.
func (f *File) Name() string {
	return f.name
}

// Close closes the File, rendering it unusable for I/O.
// It returns an error, if any.
func (f *File) Close() error {
	return f.wrapErr("close", f.handle.close(f.cl))
}

func (f *File) wrapErr(op string, err error) error {
	return wrapPathError(op, f.name, err)
}

// Stat returns the FileInfo structure describing file.
func (f *File) Stat() (fs.FileInfo, error) {
	handle, _, err := f.handle.get()
	if err != nil {
		return nil, f.wrapErr("fstat", err)
	}

	pkt, err := f.cl.ch.Fstat(handle).Get()
	if err != nil {
		return nil, f.wrapErr("fstat", err)
	}

	return newFileInfo(path.Base(f.name), &pkt.Attrs), nil
}

// chunks splits length into pieces no longer than size.
func chunks(length, size int) [][2]int {
	var out [][2]int
	for start := 0; start < length; start += size {
		out = append(out, [2]int{start, min(start+size, length)})
	}
	return out
}

// readatFull reads len(b) bytes at off, issuing further requests when the server answers short.
// It returns io.EOF if the end of the file is reached first.
func (f *File) readatFull(handle string, cancel <-chan struct{}, b []byte, off int64) (read int, err error) {
	for read < len(b) {
		select {
		case <-cancel:
			return read, fs.ErrClosed
		default:
		}

		res, err := f.cl.ch.ReadFile(handle, uint64(off)+uint64(read), uint32(len(b)-read)).Get()
		if err != nil {
			return read, err
		}

		if res.Status != nil || len(res.Data) == 0 {
			return read, io.EOF
		}

		read += copy(b[read:], res.Data)
	}

	return read, nil
}

// ReadAt reads up to len(b) bytes from the File at a given offset `off`.
// It returns the number of bytes read and an error, if any.
// ReadAt follows io.ReaderAt semantics,
// so the file offset is not altered during the read.
//
// Large reads are split into chunks, which are requested concurrently.
func (f *File) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, f.wrapErr("readat", errors.New("negative offset"))
	}

	handle, cancel, err := f.handle.get()
	if err != nil {
		return 0, f.wrapErr("readat", err)
	}

	if len(b) <= f.cl.maxDataLen {
		n, err := f.readatFull(handle, cancel, b, off)
		return n, f.wrapErr("readat", err)
	}

	parts := chunks(len(b), f.cl.maxDataLen)
	reads := make([]int, len(parts))
	errs := make([]error, len(parts))

	var g errgroup.Group
	g.SetLimit(f.cl.maxInflight)

	for i, part := range parts {
		g.Go(func() error {
			reads[i], errs[i] = f.readatFull(handle, cancel, b[part[0]:part[1]], off+int64(part[0]))
			return nil
		})
	}

	_ = g.Wait()

	// Bytes read past the first failing chunk are not contiguous, and are not counted.
	var n int
	for i := range parts {
		n += reads[i]
		if errs[i] != nil {
			return n, f.wrapErr("readat", errs[i])
		}
	}

	return n, nil
}

// Read reads up to len(b) bytes from the File, and advances the file offset.
// It returns the number of bytes read and an error, if any.
// At end of file, Read returns 0, io.EOF.
func (f *File) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.ReadAt(b, f.offset)
	f.offset += int64(n)

	if err == io.EOF && n > 0 {
		return n, nil
	}

	return n, err
}

// WriteAt writes up to len(b) bytes to the File at a given offset `off`.
// It returns the number of bytes written and an error, if any.
// WriteAt follows io.WriterAt semantics,
// so the file offset is not altered during the write.
//
// Large writes are split into chunks, which are sent concurrently.
func (f *File) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, f.wrapErr("writeat", errors.New("negative offset"))
	}

	handle, cancel, err := f.handle.get()
	if err != nil {
		return 0, f.wrapErr("writeat", err)
	}

	parts := chunks(len(b), f.cl.maxDataLen)
	errs := make([]error, len(parts))

	var g errgroup.Group
	g.SetLimit(f.cl.maxInflight)

	for i, part := range parts {
		g.Go(func() error {
			select {
			case <-cancel:
				errs[i] = fs.ErrClosed
				return nil
			default:
			}

			_, errs[i] = f.cl.ch.WriteFile(handle, uint64(off)+uint64(part[0]), b[part[0]:part[1]]).Get()
			return nil
		})
	}

	_ = g.Wait()

	// Only the chunks before the first failure are known to be written in order.
	for i, part := range parts {
		if errs[i] != nil {
			return part[0], f.wrapErr("writeat", errs[i])
		}
	}

	return len(b), nil
}

// Write writes len(b) bytes to the File, and advances the file offset.
// It returns the number of bytes written and an error, if any.
// Write returns a non-nil error when n != len(b).
func (f *File) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.WriteAt(b, f.offset)
	f.offset += int64(n)

	return n, err
}

// Seek sets the offset for the next Read or Write on file to offset,
// interpreted according to whence:
// 0 means relative to the origin of the file,
// 1 means relative to the current offset,
// and 2 means relative to the end.
// It returns the new offset and an error, if any.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		fi, err := f.Stat()
		if err != nil {
			return f.offset, err
		}
		offset += fi.Size()
	default:
		return f.offset, f.wrapErr("seek", errors.Errorf("invalid whence: %d", whence))
	}

	if offset < 0 {
		return f.offset, f.wrapErr("seek", errors.Errorf("negative offset: %d", offset))
	}

	f.offset = offset
	return f.offset, nil
}
