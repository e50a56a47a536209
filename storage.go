// storage.go - Filesystem access behind afero.

package main

import (
	"fmt"

	"github.com/spf13/afero"
)

// Files larger than this are rejected before reading; no real command
// log comes close.
const MAX_FILE_SIZE = 64 * 1024 * 1024

// openForRead slurps a file from the given filesystem with a size
// sanity check. Compressed (.vgz) content is handled downstream by the
// parser's gzip sniff, not here.
func openForRead(fs afero.Fs, path string) ([]byte, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MAX_FILE_SIZE {
		return nil, fmt.Errorf("%s: file too large (%d bytes)", path, info.Size())
	}
	return afero.ReadFile(fs, path)
}
