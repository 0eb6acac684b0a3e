package sshfx

// ExtensionPair defines the extension-pair type defined in draft-ietf-secsh-filexfer-13.
// This type is backwards-compatible with how draft-ietf-secsh-filexfer-02 defines extensions.
//
// Defined in: https://tools.ietf.org/html/draft-ietf-secsh-filexfer-13#section-4.2
type ExtensionPair struct {
	Name string
	Data string
}

// Len returns the number of bytes e would marshal into.
func (e *ExtensionPair) Len() int {
	return 4 + len(e.Name) + 4 + len(e.Data)
}

// MarshalInto marshals e onto the end of the given Buffer.
func (e *ExtensionPair) MarshalInto(buf *Buffer) {
	buf.AppendString(e.Name)
	buf.AppendString(e.Data)
}

// UnmarshalFrom unmarshals an ExtensionPair from the given Buffer into e.
func (e *ExtensionPair) UnmarshalFrom(buf *Buffer) (err error) {
	*e = ExtensionPair{
		Name: buf.ConsumeString(),
		Data: buf.ConsumeString(),
	}

	return buf.Err
}

func marshalExtensions(buf *Buffer, exts []*ExtensionPair) {
	for _, ext := range exts {
		ext.MarshalInto(buf)
	}
}

func unmarshalExtensions(buf *Buffer) ([]*ExtensionPair, error) {
	var exts []*ExtensionPair

	for buf.Len() > 0 {
		var ext ExtensionPair
		if err := ext.UnmarshalFrom(buf); err != nil {
			return nil, err
		}

		exts = append(exts, &ext)
	}

	return exts, nil
}
