package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Dir serves workbooks from a local directory. Keys are slash separated
// paths relative to Root and may not escape it.
type Dir struct {
	Root string
}

func (d Dir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if strings.Trim(clean, string(filepath.Separator)) == "" {
		return nil, fmt.Errorf("storage: empty key")
	}
	return os.Open(filepath.Join(d.Root, clean))
}
