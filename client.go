package sshclient

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

// Client is a blocking, filesystem-like view of an SFTP Channel.
// A Client may be called concurrently from multiple goroutines.
type Client struct {
	ch *Channel

	maxDataLen  int
	maxInflight int
}

// NewClient returns a Client over an open Channel.
// The opts tune how reads and writes are split, see WithMaxDataLength and WithMaxInflight.
func NewClient(ch *Channel, opts ...Option) (*Client, error) {
	o := ch.opts
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	return &Client{
		ch:          ch,
		maxDataLen:  o.maxDataLen,
		maxInflight: o.maxInflight,
	}, nil
}

// Dial opens an SFTP client on a new session channel of conn.
// The given context is only used during initialization, and handshake.
func Dial(ctx context.Context, conn *ssh.Client, opts ...Option) (*Client, error) {
	s, err := NewSession(conn, opts...)
	if err != nil {
		return nil, err
	}

	return s.SFTP(ctx)
}

type pipe struct {
	io.Reader
	io.WriteCloser
}

// Close closes the writer, and the reader too if it can be closed.
func (p pipe) Close() error {
	err := p.WriteCloser.Close()

	if c, ok := p.Reader.(io.Closer); ok {
		if err1 := c.Close(); err == nil {
			err = err1
		}
	}

	return err
}

// NewClientPipe creates a new SFTP client given a Reader and WriteCloser.
// This can be used for connecting an SFTP server over TCP/TLS, or by using the system's ssh client program.
//
// The given context is only used for the negotiation of init and version packets.
func NewClientPipe(ctx context.Context, rd io.Reader, wr io.WriteCloser, opts ...Option) (*Client, error) {
	ch, err := OpenChannel(ctx, pipe{rd, wr}, opts...)
	if err != nil {
		return nil, err
	}

	return NewClient(ch, opts...)
}

// Channel returns the asynchronous Channel the Client runs on.
func (cl *Client) Channel() *Channel {
	return cl.ch
}

// Close closes the SFTP session.
// Operations still outstanding fail with an error matching ErrConnectionClosed.
func (cl *Client) Close() error {
	_, err := cl.ch.Close().Get()
	return err
}

func wrapPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	if isEOF(err) {
		// Numerous odd things break if we don't return bare io.EOF errors.
		return io.EOF
	}

	return &fs.PathError{Op: op, Path: path, Err: err}
}

func wrapLinkError(op, oldpath, newpath string, err error) error {
	if err == nil {
		return nil
	}

	return &os.LinkError{Op: op, Old: oldpath, New: newpath, Err: err}
}

// isEOF reports whether err is the server reporting SSH_FX_EOF.
// A connection closed by EOF is not an end of file.
func isEOF(err error) bool {
	var statusErr *StatusError
	return err == io.EOF || (errors.As(err, &statusErr) && statusErr.Code == sshfx.StatusEOF)
}

// Stat returns a FileInfo describing the named file.
// If the file is a symbolic link, the returned FileInfo describes the link's target.
func (cl *Client) Stat(name string) (fs.FileInfo, error) {
	pkt, err := cl.ch.Stat(name).Get()
	if err != nil {
		return nil, wrapPathError("stat", name, err)
	}

	return newFileInfo(path.Base(name), &pkt.Attrs), nil
}

// Lstat returns a FileInfo describing the named file.
// If the file is a symbolic link, the returned FileInfo describes the symbolic link.
// Lstat makes no attempt to follow the link.
func (cl *Client) Lstat(name string) (fs.FileInfo, error) {
	pkt, err := cl.ch.Lstat(name).Get()
	if err != nil {
		return nil, wrapPathError("lstat", name, err)
	}

	return newFileInfo(path.Base(name), &pkt.Attrs), nil
}

// RealPath returns the server canonicalized absolute path for the given path name.
// This is useful for converting path names containing ".." components,
// or relative pathnames without a leading slash into absolute paths.
func (cl *Client) RealPath(name string) (string, error) {
	pkt, err := cl.ch.RealPath(name).Get()
	if err != nil {
		return "", wrapPathError("realpath", name, err)
	}

	if len(pkt.Entries) != 1 {
		return "", wrapPathError("realpath", name, errors.Wrapf(ErrInvalidResponse, "got %d names", len(pkt.Entries)))
	}

	return pkt.Entries[0].Filename, nil
}

// Getwd returns the current working directory of the server.
func (cl *Client) Getwd() (string, error) {
	return cl.RealPath(".")
}

// Mkdir creates the specified directory.
// An error will be returned if a file or directory with the specified path already exists,
// or if the directory's parent folder does not exist.
func (cl *Client) Mkdir(name string, perm fs.FileMode) error {
	var attrs sshfx.Attributes
	attrs.SetPermissions(sshfx.FileMode(perm.Perm()))

	_, err := cl.ch.Mkdir(name, attrs).Get()
	return wrapPathError("mkdir", name, err)
}

// MkdirAll creates a directory named path, along with any necessary parents.
// If a path is already a directory, MkdirAll does nothing and returns nil.
func (cl *Client) MkdirAll(name string, perm fs.FileMode) error {
	// Fast path: if we can tell whether name is a directory or file, stop with success or error.
	dir, err := cl.Stat(name)
	if err == nil {
		if dir.IsDir() {
			return nil
		}

		return wrapPathError("mkdir", name, syscall.ENOTDIR)
	}

	// Slow path: make sure parent exists and then call Mkdir for name.
	if parent := path.Dir(name); parent != name && parent != "." {
		if err := cl.MkdirAll(parent, perm); err != nil {
			return err
		}
	}

	// Parent now exists; invoke Mkdir and use its result.
	if err := cl.Mkdir(name, perm); err != nil {
		// Handle arguments like "foo/." by
		// double-checking that directory doesn't exist.
		dir, err1 := cl.Lstat(name)
		if err1 == nil && dir.IsDir() {
			return nil
		}
		return err
	}

	return nil
}

// Remove removes the named file or (empty) directory.
//
// If both operations fail, then Remove will stat the named filesystem object.
// It then returns the error from that SSH_FXP_STAT request if one occurs,
// or the error from the SSH_FXP_RMDIR request if it is a directory,
// otherwise returning the error from the SSH_FXP_REMOVE request.
func (cl *Client) Remove(name string) error {
	_, err := cl.ch.Remove(name).Get()
	if err == nil {
		return nil
	}

	_, err1 := cl.ch.Rmdir(name).Get()
	if err1 == nil {
		return nil
	}

	// Both failed: figure out which error to return.
	attrs, err2 := cl.ch.Stat(name).Get()
	if err2 != nil {
		err = err2
	} else if perm, ok := attrs.Attrs.GetPermissions(); ok && perm.IsDir() {
		err = err1
	}

	return wrapPathError("remove", name, err)
}

// RemoveDirectory removes a directory path.
func (cl *Client) RemoveDirectory(name string) error {
	_, err := cl.ch.Rmdir(name).Get()
	return wrapPathError("rmdir", name, err)
}

// Rename renames (moves) oldpath to newpath.
// If newpath already exists, the SFTP v3 rename fails, as POSIX rename semantics are not part of the protocol.
func (cl *Client) Rename(oldpath, newpath string) error {
	_, err := cl.ch.Rename(oldpath, newpath).Get()
	return wrapLinkError("rename", oldpath, newpath, err)
}

// ReadDir reads the named directory, returning all its directory entries sorted by filename.
// The "." and ".." entries are omitted.
func (cl *Client) ReadDir(name string) ([]fs.FileInfo, error) {
	return cl.ReadDirContext(context.Background(), name)
}

// ReadDirContext reads the named directory, returning all its directory entries sorted by filename.
// If an error occurs reading the directory, including the context being canceled,
// ReadDirContext returns the entries it was able to read before the error, along with the error.
func (cl *Client) ReadDirContext(ctx context.Context, name string) (entries []fs.FileInfo, err error) {
	pkt, err := cl.ch.OpenDir(name).Wait(ctx)
	if err != nil {
		return nil, wrapPathError("opendir", name, err)
	}

	defer func() {
		// Always sent, even if ctx is done.
		if _, err1 := cl.ch.CloseFile(pkt.Handle).Get(); err == nil && err1 != nil {
			err = wrapPathError("close", name, err1)
		}
	}()

	for {
		res, err := cl.ch.ReadDir(pkt.Handle).Wait(ctx)
		if err != nil {
			return sortFileInfos(entries), wrapPathError("readdir", name, err)
		}

		if res.Status != nil {
			// SSH_FX_EOF, the end of the directory.
			return sortFileInfos(entries), nil
		}

		for _, e := range res.Entries {
			if e.Filename == "." || e.Filename == ".." {
				continue
			}

			entries = append(entries, newFileInfo(e.Filename, &e.Attrs))
		}
	}
}

func sortFileInfos(fis []fs.FileInfo) []fs.FileInfo {
	sort.Slice(fis, func(i, j int) bool {
		return fis[i].Name() < fis[j].Name()
	})
	return fis
}

// Join joins any number of path elements into a single path, adding a separating slash if necessary.
// The result is Cleaned; in particular, all empty strings are ignored.
func (cl *Client) Join(elem ...string) string {
	return path.Join(elem...)
}

// ReadFile reads the named file and returns its contents.
// Reads are split and pipelined according to WithMaxDataLength and WithMaxInflight.
func (cl *Client) ReadFile(name string) ([]byte, error) {
	f, err := cl.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size int64
	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		size = fi.Size()
	}

	data := make([]byte, size)

	n, err := f.ReadAt(data, 0)
	if err != nil {
		if err == io.EOF {
			// The file shrunk since the stat.
			return data[:n], nil
		}

		return data[:n], err
	}

	// The file may have grown since the stat.
	if _, err := f.Seek(int64(n), io.SeekStart); err != nil {
		return data, err
	}

	rest, err := io.ReadAll(f)
	return append(data, rest...), err
}

// WriteFile writes data to the named file, creating it if necessary.
// If the file does not exist, WriteFile creates it with permissions perm (before umask);
// otherwise WriteFile truncates it before writing, without changing permissions.
func (cl *Client) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f, err := cl.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	_, err = f.WriteAt(data, 0)
	if err1 := f.Close(); err1 != nil && err == nil {
		err = err1
	}

	return err
}
