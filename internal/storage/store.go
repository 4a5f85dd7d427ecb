package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Store is the file-system side of the index: object files under
// <root>/dicom and thumbnails under <root>/thumbs.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string { return s.root }

func (s *Store) InstancePath(studyUID, seriesUID, sopInstanceUID string) string {
	return InstancePath(s.root, studyUID, seriesUID, sopInstanceUID)
}

func (s *Store) ThumbnailPath(studyUID, seriesUID, sopInstanceUID string) string {
	return ThumbnailPath(s.root, studyUID, seriesUID, sopInstanceUID)
}

// EnsureDir creates the directory for dest. Creation is idempotent.
func (s *Store) EnsureDir(dest string) error {
	return os.MkdirAll(filepath.Dir(dest), 0o755)
}

// WriteObject writes data to dest. The write goes to a uniquely named
// temporary file in the destination directory and is renamed into place, so
// a crash mid-write never leaves a half object at dest.
func (s *Store) WriteObject(dest string, data io.Reader) error {
	if err := s.EnsureDir(dest); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp := dest + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// CopyObject copies the file at src to dest via WriteObject.
func (s *Store) CopyObject(dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return s.WriteObject(dest, in)
}

// Stat returns size and mtime (unix seconds) of path.
func (s *Store) Stat(path string) (sizeBytes, modTimeUnix int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), info.ModTime().Unix(), nil
}

// UpToDate reports whether the current file at path still matches the
// recorded digest. A missing file is never up to date.
func (s *Store) UpToDate(path string, sizeBytes, modTimeUnix int64) bool {
	if path == "" || sizeBytes == 0 && modTimeUnix == 0 {
		return false
	}
	curSize, curMod, err := s.Stat(path)
	if err != nil {
		return false
	}
	return curSize == sizeBytes && curMod == modTimeUnix
}

// Remove deletes path. A file that is already gone counts as removed.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PruneEmptyDirs removes empty directories under the object and thumbnail
// trees, bottom-up. The tree roots themselves are kept.
func (s *Store) PruneEmptyDirs() error {
	var firstErr error
	for _, root := range []string{ObjectRoot(s.root), ThumbnailRoot(s.root)} {
		if err := pruneBelow(root); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func pruneBelow(root string) error {
	dirs := make([]string, 0)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Deepest first so a chain of empty parents collapses in one pass.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
	return nil
}
