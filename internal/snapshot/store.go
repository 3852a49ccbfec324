package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveToFile atomically writes snap's canonical JSON to path, adapted
// from the teacher's AtomicWriteFile: write to a sibling temp file,
// fsync, then rename, so a crash mid-write never leaves a truncated
// snapshot behind.
func SaveToFile(path string, snap *Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".qiwallet-snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmpFile.Chmod(0600); err != nil {
		return fmt.Errorf("set snapshot permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadFromFile reads the snapshot at path and returns its raw bytes,
// leaving JSON decoding, field-level and re-derivation validation to
// Restore.
func LoadFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return data, nil
}
