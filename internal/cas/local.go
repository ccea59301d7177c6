package cas

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

var (
	ErrNotFound    = errors.New("cas: not found")
	ErrCIDMismatch = errors.New("cas: content does not match CID")
)

// Local is a filesystem content store. Objects are written once under their
// CID and never modified. It needs no network, so it backs development
// setups where no uploader is configured.
type Local struct {
	root    string
	gateway string
}

// NewLocal roots a store at dir. gateway, when set, is the URL prefix that
// serves the directory, and the object URL is gateway + "/" + CID.
func NewLocal(dir, gateway string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("cas: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: dir, gateway: strings.TrimRight(gateway, "/")}, nil
}

// Put stores data and returns its location. The name is ignored; content
// alone determines the key.
func (l *Local) Put(ctx context.Context, name string, data []byte) (models.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return models.StoredObject{}, err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	path := l.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return l.object(id), nil
	}

	// Write then rename so a reader never sees a partial object.
	tmp, err := os.CreateTemp(l.root, ".put-*")
	if err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return models.StoredObject{}, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	return l.object(id), nil
}

// Get returns the bytes stored under a CID after re-hashing them.
func (l *Local) Get(id string) ([]byte, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return nil, fmt.Errorf("cas: %w", err)
	}
	b, err := os.ReadFile(l.pathFor(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !Verify(id, b) {
		return nil, ErrCIDMismatch
	}
	return b, nil
}

func (l *Local) pathFor(id cid.Cid) string {
	return filepath.Join(l.root, id.String())
}

func (l *Local) object(id cid.Cid) models.StoredObject {
	obj := models.StoredObject{CID: id.String()}
	if l.gateway != "" {
		obj.URL = l.gateway + "/" + obj.CID
	} else {
		obj.URL = "file://" + l.pathFor(id)
	}
	return obj
}
