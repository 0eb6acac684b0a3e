package sshclient

import (
	"github.com/kr/fs"
)

// Client implements the github.com/kr/fs.FileSystem interface.
var _ fs.FileSystem = (*Client)(nil)

// Walk returns a new Walker rooted at root.
// Entries are visited in lexical order, symbolic links are not followed.
func (cl *Client) Walk(root string) *fs.Walker {
	return fs.WalkFS(root, cl)
}
