package claim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/flock"
)

// lockRetry is how often a blocked Accept retries the file lock.
const lockRetry = 10 * time.Millisecond

// snapshot is the on-disk form of a File store.
type snapshot struct {
	Version int              `cbor:"v"`
	Claims  map[string]int64 `cbor:"claims"`
}

const snapshotVersion = 1

// encMode writes Core Deterministic CBOR: the same claims always produce
// identical bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("claim: CBOR encoder initialization failed: " + err.Error())
	}
	return em
}()

// File keeps claims in a CBOR snapshot guarded by an advisory lock on
// path+".lock", so processes on one host share one claim set. Every Accept
// re-reads the snapshot under the lock.
type File struct {
	path string
	lock *flock.Flock
	opts options
}

// OpenFile returns a store backed by path. The file is created on the first claim.
func OpenFile(path string, opts ...Option) (*File, error) {
	if path == "" {
		return nil, errors.New("claim: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create claim directory: %w", err)
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
		opts: buildOptions(opts),
	}, nil
}

// Accept claims candidate unless the snapshot already holds it.
func (f *File) Accept(ctx context.Context, candidate string) (bool, error) {
	if candidate == "" {
		return false, ErrEmptyCandidate
	}
	var accepted bool
	err := f.withLock(ctx, func() error {
		snap, err := f.read()
		if err != nil {
			return err
		}
		if _, taken := snap.Claims[candidate]; taken {
			return nil
		}
		snap.Claims[candidate] = f.opts.now().UnixMilli()
		if err := f.write(snap); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	return accepted, err
}

// Claimed reports whether candidate is in the snapshot.
func (f *File) Claimed(ctx context.Context, candidate string) (bool, error) {
	var taken bool
	err := f.withLock(ctx, func() error {
		snap, err := f.read()
		if err != nil {
			return err
		}
		_, taken = snap.Claims[candidate]
		return nil
	})
	return taken, err
}

// Release removes candidate from the snapshot.
func (f *File) Release(ctx context.Context, candidate string) error {
	return f.withLock(ctx, func() error {
		snap, err := f.read()
		if err != nil {
			return err
		}
		if _, taken := snap.Claims[candidate]; !taken {
			return nil
		}
		delete(snap.Claims, candidate)
		return f.write(snap)
	})
}

// Close releases the lock file handle.
func (f *File) Close() error {
	return f.lock.Close()
}

func (f *File) withLock(ctx context.Context, fn func() error) error {
	locked, err := f.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", f.lock.Path())
	}
	defer func() {
		if err := f.lock.Unlock(); err != nil {
			f.opts.logger.Warn("unlock claim file", "path", f.lock.Path(), "error", err)
		}
	}()
	return fn()
}

func (f *File) read() (snapshot, error) {
	snap := snapshot{Version: snapshotVersion, Claims: map[string]int64{}}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read claims: %w", err)
	}
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode claims %s: %w", f.path, err)
	}
	if snap.Version != snapshotVersion {
		return snap, fmt.Errorf("claims %s: unsupported snapshot version %d", f.path, snap.Version)
	}
	if snap.Claims == nil {
		snap.Claims = map[string]int64{}
	}
	return snap, nil
}

// write replaces the snapshot atomically via a temp file and rename.
func (f *File) write(snap snapshot) error {
	data, err := encMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write claims: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write claims: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write claims: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write claims: %w", err)
	}
	return nil
}
