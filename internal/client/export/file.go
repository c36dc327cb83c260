package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/goalboard/internal/cryptox"
	"github.com/dmitrijs2005/goalboard/internal/filex"
)

// ErrDigestMismatch reports an export whose stored bytes differ from the
// bytes that were digested.
var ErrDigestMismatch = errors.New("export digest mismatch")

// FileSink writes exports into a local directory.
type FileSink struct {
	Dir string
}

func (s FileSink) Write(_ context.Context, name string, body []byte, digest string) (Result, error) {
	dir, err := filex.EnsureDir(s.Dir)
	if err != nil {
		return Result{}, err
	}
	path := filepath.Join(dir, name)
	if err := filex.WriteFileAtomic(path, body, 0o640); err != nil {
		return Result{}, err
	}
	if err := VerifyFile(path, digest); err != nil {
		return Result{}, err
	}
	return Result{Location: path}, nil
}

// VerifyFile reads path back and checks it against digest.
func VerifyFile(path, digest string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read back export: %w", err)
	}
	if !cryptox.Verify(b, digest) {
		return fmt.Errorf("%s: %w", path, ErrDigestMismatch)
	}
	return nil
}
