package sshclient

import (
	"net"
	"path"
	"sort"
	"strconv"
	"sync"

	sshfx "github.com/pkg/sshclient/encoding/ssh/filexfer"
)

type memFile struct {
	name    string
	mode    sshfx.FileMode
	content []byte
}

type memHandle struct {
	file *memFile
	dir  []*sshfx.NameEntry // pending directory entries
}

// memServer is a minimal SFTP v3 server over an in-memory tree.
// Requests are answered one at a time, in order.
type memServer struct {
	mu      sync.Mutex
	files   map[string]*memFile
	handles map[string]*memHandle
	nextH   int

	// maxRead caps the data returned per SSH_FXP_READ, when non-zero.
	maxRead int
	// dirBatch caps the entries returned per SSH_FXP_READDIR, when non-zero.
	dirBatch int

	requests map[sshfx.PacketType]int
}

func newMemServer() *memServer {
	return &memServer{
		files: map[string]*memFile{
			"/": {name: "/", mode: sshfx.ModeDir | 0o755},
		},
		handles:  make(map[string]*memHandle),
		requests: make(map[sshfx.PacketType]int),
	}
}

func (s *memServer) putFile(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = &memFile{name: name, mode: sshfx.ModeRegular | 0o644, content: content}
}

func (s *memServer) putDir(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = &memFile{name: name, mode: sshfx.ModeDir | 0o755}
}

func (s *memServer) content(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.content...), true
}

func (s *memServer) count(typ sshfx.PacketType) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[typ]
}

func (s *memServer) openHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.handles)
}

func (s *memServer) serve(conn net.Conn) error {
	defer conn.Close()

	if err := serveVersion(conn, &sshfx.VersionPacket{Version: sshfx.ProtocolVersion}); err != nil {
		return err
	}

	for {
		m, err := sshfx.ReadMessage(conn, sshfx.DefaultMaxPacketLength)
		if err != nil {
			return err
		}

		resp := s.handle(m.(sshfx.Identified))

		data, err := sshfx.Marshal(resp)
		if err != nil {
			return err
		}

		if _, err := conn.Write(data); err != nil {
			return err
		}
	}
}

func status(id uint32, code sshfx.Status) *sshfx.StatusPacket {
	return &sshfx.StatusPacket{RequestID: id, StatusCode: code, ErrorMessage: code.String()}
}

func (f *memFile) attrs() sshfx.Attributes {
	var a sshfx.Attributes
	a.SetSize(uint64(len(f.content)))
	a.SetPermissions(f.mode)
	a.SetACModTime(1700000000, 1700000000)
	return a
}

func (s *memServer) children(dir string) []*memFile {
	var out []*memFile
	for name, f := range s.files {
		if name != dir && path.Dir(name) == dir {
			out = append(out, f)
		}
	}
	return out
}

// listing returns the entries of dir as a server would send them, unsorted and with "." and "..".
func (s *memServer) listing(dir *memFile) []*sshfx.NameEntry {
	dot := dir.attrs()
	entries := []*sshfx.NameEntry{
		{Filename: ".", Longname: ".", Attrs: dot},
		{Filename: "..", Longname: "..", Attrs: dot},
	}

	children := s.children(dir.name)
	sort.Slice(children, func(i, j int) bool { return children[i].name > children[j].name })

	for _, f := range children {
		base := path.Base(f.name)
		entries = append(entries, &sshfx.NameEntry{Filename: base, Longname: base, Attrs: f.attrs()})
	}

	return entries
}

func (s *memServer) newHandle(h *memHandle) string {
	s.nextH++
	name := "h" + strconv.Itoa(s.nextH)
	s.handles[name] = h
	return name
}

func (s *memServer) handle(req sshfx.Identified) sshfx.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[req.Type()]++
	id := req.GetRequestID()

	switch req := req.(type) {
	case *sshfx.OpenPacket:
		f, ok := s.files[req.Filename]
		switch {
		case ok && req.PFlags&(sshfx.FlagCreate|sshfx.FlagExclusive) == sshfx.FlagCreate|sshfx.FlagExclusive:
			return status(id, sshfx.StatusFailure)
		case !ok && req.PFlags&sshfx.FlagCreate == 0:
			return status(id, sshfx.StatusNoSuchFile)
		case !ok:
			if _, ok := s.files[path.Dir(req.Filename)]; !ok {
				return status(id, sshfx.StatusNoSuchFile)
			}
			perm, _ := req.Attrs.GetPermissions()
			f = &memFile{name: req.Filename, mode: sshfx.ModeRegular | perm.Perm()}
			s.files[req.Filename] = f
		case f.mode.IsDir():
			return status(id, sshfx.StatusFailure)
		}
		if req.PFlags&sshfx.FlagTruncate != 0 {
			f.content = nil
		}
		return &sshfx.HandlePacket{RequestID: id, Handle: s.newHandle(&memHandle{file: f})}

	case *sshfx.OpenDirPacket:
		f, ok := s.files[req.Path]
		if !ok {
			return status(id, sshfx.StatusNoSuchFile)
		}
		if !f.mode.IsDir() {
			return status(id, sshfx.StatusFailure)
		}
		return &sshfx.HandlePacket{RequestID: id, Handle: s.newHandle(&memHandle{file: f, dir: s.listing(f)})}

	case *sshfx.ClosePacket:
		if _, ok := s.handles[req.Handle]; !ok {
			return status(id, sshfx.StatusFailure)
		}
		delete(s.handles, req.Handle)
		return status(id, sshfx.StatusOK)

	case *sshfx.ReadPacket:
		h, ok := s.handles[req.Handle]
		if !ok {
			return status(id, sshfx.StatusFailure)
		}
		if req.Offset >= uint64(len(h.file.content)) {
			return status(id, sshfx.StatusEOF)
		}
		end := min(req.Offset+uint64(req.Length), uint64(len(h.file.content)))
		if s.maxRead > 0 {
			end = min(end, req.Offset+uint64(s.maxRead))
		}
		return &sshfx.DataPacket{RequestID: id, Data: h.file.content[req.Offset:end]}

	case *sshfx.WritePacket:
		h, ok := s.handles[req.Handle]
		if !ok {
			return status(id, sshfx.StatusFailure)
		}
		end := int(req.Offset) + len(req.Data)
		if end > len(h.file.content) {
			h.file.content = append(h.file.content, make([]byte, end-len(h.file.content))...)
		}
		copy(h.file.content[req.Offset:], req.Data)
		return status(id, sshfx.StatusOK)

	case *sshfx.FStatPacket:
		h, ok := s.handles[req.Handle]
		if !ok {
			return status(id, sshfx.StatusFailure)
		}
		return &sshfx.AttrsPacket{RequestID: id, Attrs: h.file.attrs()}

	case *sshfx.ReadDirPacket:
		h, ok := s.handles[req.Handle]
		if !ok {
			return status(id, sshfx.StatusFailure)
		}
		if len(h.dir) == 0 {
			return status(id, sshfx.StatusEOF)
		}
		entries := h.dir
		if s.dirBatch > 0 && len(entries) > s.dirBatch {
			entries = entries[:s.dirBatch]
		}
		h.dir = h.dir[len(entries):]
		return &sshfx.NamePacket{RequestID: id, Entries: entries}

	case *sshfx.StatPacket:
		return s.stat(id, req.Path)

	case *sshfx.LStatPacket:
		return s.stat(id, req.Path)

	case *sshfx.RealPathPacket:
		p := req.Path
		if !path.IsAbs(p) {
			p = path.Join("/", p)
		}
		return &sshfx.NamePacket{RequestID: id, Entries: []*sshfx.NameEntry{{Filename: path.Clean(p)}}}

	case *sshfx.MkdirPacket:
		if _, ok := s.files[req.Path]; ok {
			return status(id, sshfx.StatusFailure)
		}
		if _, ok := s.files[path.Dir(req.Path)]; !ok {
			return status(id, sshfx.StatusNoSuchFile)
		}
		perm, _ := req.Attrs.GetPermissions()
		s.files[req.Path] = &memFile{name: req.Path, mode: sshfx.ModeDir | perm.Perm()}
		return status(id, sshfx.StatusOK)

	case *sshfx.RemovePacket:
		f, ok := s.files[req.Path]
		if !ok {
			return status(id, sshfx.StatusNoSuchFile)
		}
		if f.mode.IsDir() {
			return status(id, sshfx.StatusFailure)
		}
		delete(s.files, req.Path)
		return status(id, sshfx.StatusOK)

	case *sshfx.RmdirPacket:
		f, ok := s.files[req.Path]
		if !ok {
			return status(id, sshfx.StatusNoSuchFile)
		}
		if !f.mode.IsDir() || len(s.children(req.Path)) > 0 {
			return status(id, sshfx.StatusFailure)
		}
		delete(s.files, req.Path)
		return status(id, sshfx.StatusOK)

	case *sshfx.RenamePacket:
		f, ok := s.files[req.OldPath]
		if !ok {
			return status(id, sshfx.StatusNoSuchFile)
		}
		if _, ok := s.files[req.NewPath]; ok {
			return status(id, sshfx.StatusFailure)
		}
		delete(s.files, req.OldPath)
		f.name = req.NewPath
		s.files[req.NewPath] = f
		return status(id, sshfx.StatusOK)
	}

	return status(id, sshfx.StatusOPUnsupported)
}

func (s *memServer) stat(id uint32, name string) sshfx.Message {
	f, ok := s.files[name]
	if !ok {
		return status(id, sshfx.StatusNoSuchFile)
	}
	return &sshfx.AttrsPacket{RequestID: id, Attrs: f.attrs()}
}
