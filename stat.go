package sshclient

import (
	"io/fs"
	"os"
	"time"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

// fileInfo is an fs.FileInfo over the attributes sent by the server.
type fileInfo struct {
	name  string
	attrs sshfx.Attributes
}

func newFileInfo(name string, attrs *sshfx.Attributes) *fileInfo {
	return &fileInfo{
		name:  name,
		attrs: *attrs,
	}
}

// Name returns the base name of the file.
func (fi *fileInfo) Name() string { return fi.name }

// Size returns the length in bytes for regular files; system-dependent for others.
func (fi *fileInfo) Size() int64 {
	size, _ := fi.attrs.GetSize()
	return int64(size)
}

// Mode returns file mode bits.
func (fi *fileInfo) Mode() fs.FileMode {
	perm, _ := fi.attrs.GetPermissions()
	return toFileMode(perm)
}

// ModTime returns the last modification time of the file.
func (fi *fileInfo) ModTime() time.Time {
	_, mtime, _ := fi.attrs.GetACModTime()
	return time.Unix(int64(mtime), 0)
}

// IsDir returns true if the file is a directory.
func (fi *fileInfo) IsDir() bool { return fi.Mode().IsDir() }

// Sys returns the *sshfx.Attributes the server sent.
func (fi *fileInfo) Sys() any { return &fi.attrs }

// toFileMode converts sftp filemode bits to the fs.FileMode specification
func toFileMode(mode sshfx.FileMode) fs.FileMode {
	fm := fs.FileMode(mode.Perm())

	switch mode.Type() {
	case sshfx.ModeDevice:
		fm |= fs.ModeDevice
	case sshfx.ModeCharDevice:
		fm |= fs.ModeDevice | fs.ModeCharDevice
	case sshfx.ModeDir:
		fm |= fs.ModeDir
	case sshfx.ModeNamedPipe:
		fm |= fs.ModeNamedPipe
	case sshfx.ModeSymlink:
		fm |= fs.ModeSymlink
	case sshfx.ModeSocket:
		fm |= fs.ModeSocket
	}

	if mode&sshfx.ModeSetUID != 0 {
		fm |= fs.ModeSetuid
	}
	if mode&sshfx.ModeSetGID != 0 {
		fm |= fs.ModeSetgid
	}
	if mode&sshfx.ModeSticky != 0 {
		fm |= fs.ModeSticky
	}

	return fm
}

// fromFileMode converts from the fs.FileMode specification to sftp filemode bits
func fromFileMode(mode fs.FileMode) sshfx.FileMode {
	ret := sshfx.FileMode(mode & fs.ModePerm)

	switch mode & fs.ModeType {
	case fs.ModeDevice | fs.ModeCharDevice:
		ret |= sshfx.ModeCharDevice
	case fs.ModeDevice:
		ret |= sshfx.ModeDevice
	case fs.ModeDir:
		ret |= sshfx.ModeDir
	case fs.ModeNamedPipe:
		ret |= sshfx.ModeNamedPipe
	case fs.ModeSymlink:
		ret |= sshfx.ModeSymlink
	case 0:
		ret |= sshfx.ModeRegular
	case fs.ModeSocket:
		ret |= sshfx.ModeSocket
	}

	if mode&fs.ModeSetuid != 0 {
		ret |= sshfx.ModeSetUID
	}
	if mode&fs.ModeSetgid != 0 {
		ret |= sshfx.ModeSetGID
	}
	if mode&fs.ModeSticky != 0 {
		ret |= sshfx.ModeSticky
	}

	return ret
}

// toPFlags converts the os.O_* flags to the SSH_FXF_* flags.
func toPFlags(f int) uint32 {
	var out uint32
	switch f & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_RDONLY:
		out |= sshfx.FlagRead
	case os.O_WRONLY:
		out |= sshfx.FlagWrite
	case os.O_RDWR:
		out |= sshfx.FlagRead | sshfx.FlagWrite
	}
	if f&os.O_APPEND == os.O_APPEND {
		out |= sshfx.FlagAppend
	}
	if f&os.O_CREATE == os.O_CREATE {
		out |= sshfx.FlagCreate
	}
	if f&os.O_TRUNC == os.O_TRUNC {
		out |= sshfx.FlagTruncate
	}
	if f&os.O_EXCL == os.O_EXCL {
		out |= sshfx.FlagExclusive
	}
	return out
}
