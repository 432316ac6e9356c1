// Package prompt loads bundled prompt assets and fills {name} templates.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

//go:embed prompts/*.st
var bundled embed.FS

// ErrResourceNotFound is matched by a *ResourceError for an asset that does
// not exist.
var ErrResourceNotFound = errors.New("prompt resource not found")

// ResourceError describes a failed asset load. Other read failures, such as
// a directory or a permission error, are still a ResourceError but do not
// match ErrResourceNotFound.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("load prompt resource %q: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func (e *ResourceError) Is(target error) bool {
	return target == ErrResourceNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

// Loader reads prompt assets from a file system.
type Loader struct {
	fsys fs.FS
}

// NewLoader returns a loader reading from fsys.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// DefaultLoader reads from dir when set, otherwise from the assets
// compiled into the binary. Paths are the same in both cases, e.g.
// "prompts/tweet-system-message.st".
func DefaultLoader(dir string) *Loader {
	if dir != "" {
		return NewLoader(os.DirFS(dir))
	}
	return NewLoader(bundled)
}

// Load returns the asset at path as text.
func (l *Loader) Load(path string) (string, error) {
	if path == "" {
		return "", &ResourceError{Path: path, Err: fs.ErrInvalid}
	}
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return "", &ResourceError{Path: path, Err: err}
	}
	return string(data), nil
}
