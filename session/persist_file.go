package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePersister stores the record as a single file named after the storage
// name. Writes go through a temp file and rename so a crash never leaves a
// half-written record.
type FilePersister struct {
	path   string
	sealer *Sealer
}

// FileOption configures a [FilePersister].
type FileOption func(*FilePersister)

// WithSealer encrypts the record at rest.
func WithSealer(s *Sealer) FileOption {
	return func(p *FilePersister) {
		p.sealer = s
	}
}

// NewFilePersister returns a persister writing <dir>/<name>.json.
func NewFilePersister(dir, name string, opts ...FileOption) (*FilePersister, error) {
	if dir == "" || name == "" {
		return nil, errors.New("file persister requires dir and name")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	p := &FilePersister{path: filepath.Join(dir, name+".json")}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Path returns the record location.
func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	if p.sealer != nil {
		return p.sealer.Open(data)
	}
	return data, nil
}

func (p *FilePersister) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.sealer != nil {
		sealed, err := p.sealer.Seal(data)
		if err != nil {
			return err
		}
		data = sealed
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p.path)
}
