package uploader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Archive maps base keys to their processing records.
type Archive map[string]*ArchiveRecord

// Keys returns the archive keys in ascending order.
func (a Archive) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrOverwriteNeedsConfirmation is returned when an existing archive would be
// replaced without a prompter and without force.
var ErrOverwriteNeedsConfirmation = errors.New("archive exists; overwrite needs confirmation or overwrite_archive: true")

// ArchiveStore loads and persists one archive file.
type ArchiveStore struct {
	Path   string
	Force  bool
	Prompt Prompter

	asked    bool
	approved bool
}

// LoadArchive reads the archive at path. A missing file is created and an
// empty one is rewritten as {}.
func LoadArchive(path string) (Archive, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(b)) == 0) {
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			return nil, fmt.Errorf("init archive %s: %w", path, err)
		}
		return Archive{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return decodeArchive(path, b)
}

// ReadArchive reads the archive at path without touching the filesystem.
// A missing or blank file reads as an empty archive.
func ReadArchive(path string) (Archive, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Archive{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Archive{}, nil
	}
	return decodeArchive(path, b)
}

func decodeArchive(path string, b []byte) (Archive, error) {
	var a Archive
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", path, err)
	}
	if a == nil {
		a = Archive{}
	}
	for k, rec := range a {
		if rec == nil {
			delete(a, k)
		}
	}
	return a, nil
}

// EncodeArchive renders a with 4-space indentation and ascending keys.
func EncodeArchive(a Archive) ([]byte, error) {
	if a == nil {
		a = Archive{}
	}
	return encodeIndented(a)
}

func encodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads the store's archive.
func (s *ArchiveStore) Load() (Archive, error) {
	return LoadArchive(s.Path)
}

// Save writes a to the store path. The first overwrite of a non-empty file in
// this store's lifetime asks for confirmation unless Force is set; a refusal
// is remembered and later saves are skipped. It reports whether the file was
// written.
func (s *ArchiveStore) Save(a Archive) (bool, error) {
	ok, err := s.mayOverwrite()
	if err != nil || !ok {
		return false, err
	}
	b, err := EncodeArchive(a)
	if err != nil {
		return false, fmt.Errorf("encode archive: %w", err)
	}
	if err := writeFileAtomic(s.Path, b); err != nil {
		return false, err
	}
	s.asked, s.approved = true, true
	return true, nil
}

func (s *ArchiveStore) mayOverwrite() (bool, error) {
	if s.Force {
		return true, nil
	}
	if s.asked {
		return s.approved, nil
	}
	info, err := os.Stat(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() == 0 || isEmptyArchive(s.Path) {
		return true, nil
	}
	if s.Prompt == nil {
		return false, ErrOverwriteNeedsConfirmation
	}
	ok, err := s.Prompt.Confirm(fmt.Sprintf("Overwrite %s?", s.Path), true)
	if err != nil {
		return false, err
	}
	s.asked, s.approved = true, ok
	return ok, nil
}

func isEmptyArchive(path string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("{}"))
}

// writeFileAtomic replaces path with b through a synced temp file and rename.
func writeFileAtomic(path string, b []byte) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func lockPath(archivePath string) string {
	return archivePath + ".lock"
}
