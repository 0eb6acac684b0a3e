package sshfx

import (
	"bytes"
	"testing"
)

func TestAttributes(t *testing.T) {
	const (
		size  = 0x123456789ABCDEF0
		uid   = 1000
		gid   = 100
		perms = 0x87654321
		atime = 0x2A
		mtime = 0x42
	)

	tests := []struct {
		name    string
		flags   uint32
		encoded []byte
	}{
		{
			name: "empty",
			encoded: []byte{
				0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			name:  "size",
			flags: AttrSize,
			encoded: []byte{
				0x00, 0x00, 0x00, 0x01,
				0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0,
			},
		},
		{
			name:  "uidgid",
			flags: AttrUIDGID,
			encoded: []byte{
				0x00, 0x00, 0x00, 0x02,
				0x00, 0x00, 0x03, 0xE8,
				0x00, 0x00, 0x00, 100,
			},
		},
		{
			name:  "permissions",
			flags: AttrPermissions,
			encoded: []byte{
				0x00, 0x00, 0x00, 0x04,
				0x87, 0x65, 0x43, 0x21,
			},
		},
		{
			name:  "acmodtime",
			flags: AttrACModTime,
			encoded: []byte{
				0x00, 0x00, 0x00, 0x08,
				0x00, 0x00, 0x00, 42,
				0x00, 0x00, 0x00, 66,
			},
		},
		{
			name:  "extended",
			flags: AttrExtended,
			encoded: []byte{
				0x80, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x03, 'f', 'o', 'o',
				0x00, 0x00, 0x00, 0x03, 'b', 'a', 'r',
			},
		},
		{
			name:  "size uidgid permissions acmodtime extended",
			flags: AttrSize | AttrUIDGID | AttrPermissions | AttrACModTime | AttrExtended,
			encoded: []byte{
				0x80, 0x00, 0x00, 0x0F,
				0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0,
				0x00, 0x00, 0x03, 0xE8,
				0x00, 0x00, 0x00, 100,
				0x87, 0x65, 0x43, 0x21,
				0x00, 0x00, 0x00, 42,
				0x00, 0x00, 0x00, 66,
				0x00, 0x00, 0x00, 0x01,
				0x00, 0x00, 0x00, 0x03, 'f', 'o', 'o',
				0x00, 0x00, 0x00, 0x03, 'b', 'a', 'r',
			},
		},
	}

	for _, tt := range tests {
		attr := new(Attributes)

		t.Run(tt.name, func(t *testing.T) {
			attr.Flags = tt.flags

			if tt.flags&AttrSize != 0 {
				attr.SetSize(size)
			}

			if tt.flags&AttrUIDGID != 0 {
				attr.SetUIDGID(uid, gid)
			}

			if tt.flags&AttrPermissions != 0 {
				attr.SetPermissions(perms)
			}

			if tt.flags&AttrACModTime != 0 {
				attr.SetACModTime(atime, mtime)
			}

			if tt.flags&AttrExtended != 0 {
				attr.ExtendedAttributes = []ExtendedAttribute{
					{Type: "foo", Data: "bar"},
				}
			}

			if attr.Len() != len(tt.encoded) {
				t.Errorf("Len() = %d, but expected %d", attr.Len(), len(tt.encoded))
			}

			buf, err := attr.MarshalBinary()
			if err != nil {
				t.Fatal("unexpected error:", err)
			}

			if !bytes.Equal(buf, tt.encoded) {
				t.Fatalf("MarshalBinary() = %X, but wanted %X", buf, tt.encoded)
			}

			*attr = Attributes{}

			if err := attr.UnmarshalBinary(buf); err != nil {
				t.Fatal("unexpected error:", err)
			}

			if attr.Flags != tt.flags {
				t.Errorf("UnmarshalBinary(): Flags was %x, but wanted %x", attr.Flags, tt.flags)
			}

			if got, ok := attr.GetSize(); ok != (tt.flags&AttrSize != 0) || (ok && got != size) {
				t.Errorf("GetSize() = %d, %t", got, ok)
			}

			if gotUID, gotGID, ok := attr.GetUIDGID(); ok != (tt.flags&AttrUIDGID != 0) || (ok && (gotUID != uid || gotGID != gid)) {
				t.Errorf("GetUIDGID() = %d, %d, %t", gotUID, gotGID, ok)
			}

			if got, ok := attr.GetPermissions(); ok != (tt.flags&AttrPermissions != 0) || (ok && got != perms) {
				t.Errorf("GetPermissions() = %#o, %t", got, ok)
			}

			if gotA, gotM, ok := attr.GetACModTime(); ok != (tt.flags&AttrACModTime != 0) || (ok && (gotA != atime || gotM != mtime)) {
				t.Errorf("GetACModTime() = %d, %d, %t", gotA, gotM, ok)
			}

			if tt.flags&AttrExtended != 0 {
				extAttrs := attr.ExtendedAttributes

				if count := len(extAttrs); count != 1 {
					t.Fatalf("UnmarshalBinary(): len(ExtendedAttributes) was %d, but wanted %d", count, 1)
				}

				if got, want := extAttrs[0], (ExtendedAttribute{Type: "foo", Data: "bar"}); got != want {
					t.Errorf("UnmarshalBinary(): ExtendedAttributes[0] was %#v, but wanted %#v", got, want)
				}
			}
		})
	}
}

func TestAttributesExtendedCountTooLarge(t *testing.T) {
	encoded := []byte{
		0x80, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
	}

	var attr Attributes
	if err := attr.UnmarshalBinary(encoded); err != ErrShortPacket {
		t.Fatalf("UnmarshalBinary() = %v, but expected %v", err, ErrShortPacket)
	}
}

func TestFileModeString(t *testing.T) {
	tests := []struct {
		mode FileMode
		want string
	}{
		{ModeRegular | 0o644, "-rw-r--r--"},
		{ModeDir | 0o755, "drwxr-xr-x"},
		{ModeSymlink | 0o777, "lrwxrwxrwx"},
		{ModeDir | ModeSticky | 0o777, "drwxrwxrwt"},
		{ModeRegular | ModeSetUID | 0o644, "-rwSr--r--"},
		{ModeRegular | ModeSetGID | 0o755, "-rwxr-sr-x"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("FileMode(%#o).String() = %q, but wanted %q", uint32(tt.mode), got, tt.want)
		}
	}

	if !(ModeDir | 0o755).IsDir() {
		t.Error("IsDir() = false for a directory")
	}

	if !(ModeRegular | 0o644).IsRegular() {
		t.Error("IsRegular() = false for a regular file")
	}
}
