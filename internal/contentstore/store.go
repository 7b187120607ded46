// Package contentstore is the durable write-once store for extracted
// page text, spread across M on-disk directories independent of pod
// ownership (spec.md §3, §4.6). The atomic write — create a temp file,
// then rename into place — is the exact pattern kalbasit-ncps's
// pkg/storage/local/local.go PutFile/PutNar use to guarantee a reader
// never observes a partial file.
package contentstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/northfleet/podcrawl/internal/shard"
)

const fileMode = 0o644
const dirMode = 0o755

// ErrPathMustExist mirrors the kalbasit-ncps validation this package
// performs on each configured data directory at startup.
var ErrPathMustExist = errors.New("contentstore: data directory must exist")

// Store is the sharded content store: M data directories, each holding
// a content/ subtree of written artifacts and a tmp/ subtree used as the
// rename source so temp files never cross a filesystem boundary.
type Store struct {
	dataDirs []string
}

// New validates each of dataDirs and prepares its content/ and tmp/
// subdirectories.
func New(dataDirs []string) (*Store, error) {
	if len(dataDirs) == 0 {
		return nil, fmt.Errorf("contentstore: at least one data_dir is required")
	}

	for _, dir := range dataDirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %q", ErrPathMustExist, dir)
		}
		if err := os.MkdirAll(filepath.Join(dir, "content"), dirMode); err != nil {
			return nil, fmt.Errorf("contentstore: create content dir under %q: %w", dir, err)
		}
		if err := os.MkdirAll(filepath.Join(dir, "tmp"), dirMode); err != nil {
			return nil, fmt.Errorf("contentstore: create tmp dir under %q: %w", dir, err)
		}
	}

	return &Store{dataDirs: dataDirs}, nil
}

// M returns the number of content-store shards.
func (s *Store) M() int { return len(s.dataDirs) }

// pathFor returns the canonical path for a normalized URL's content,
// and the shard its write/read goes through.
func (s *Store) pathFor(normalizedURL, contentHash string) (dir int, path string) {
	dir = shard.ContentDirOf(normalizedURL, len(s.dataDirs))
	path = filepath.Join(s.dataDirs[dir], "content", contentHash+".txt")
	return dir, path
}

// Put writes text for normalizedURL (named by its 256-bit contentHash)
// if it does not already exist. An existing file is treated as success
// without rewriting — the store is write-once (spec.md §4.6).
func (s *Store) Put(normalizedURL, contentHash, text string) (shardIndex int, err error) {
	shardIndex, path := s.pathFor(normalizedURL, contentHash)

	if _, err := os.Stat(path); err == nil {
		return shardIndex, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return shardIndex, fmt.Errorf("contentstore: stat %q: %w", path, err)
	}

	tmpDir := filepath.Join(s.dataDirs[shardIndex], "tmp")
	tmp, err := os.CreateTemp(tmpDir, "content-"+strconv.Itoa(shardIndex)+"-*")
	if err != nil {
		return shardIndex, fmt.Errorf("contentstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, strings.NewReader(text)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return shardIndex, fmt.Errorf("contentstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return shardIndex, fmt.Errorf("contentstore: close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return shardIndex, fmt.Errorf("contentstore: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return shardIndex, fmt.Errorf("contentstore: rename into place: %w", err)
	}

	return shardIndex, nil
}

// Exists reports whether content for contentHash is already stored in
// shard shardIndex.
func (s *Store) Exists(shardIndex int, contentHash string) bool {
	if shardIndex < 0 || shardIndex >= len(s.dataDirs) {
		return false
	}
	path := filepath.Join(s.dataDirs[shardIndex], "content", contentHash+".txt")
	_, err := os.Stat(path)
	return err == nil
}

// Get reads back previously stored content.
func (s *Store) Get(shardIndex int, contentHash string) (string, error) {
	if shardIndex < 0 || shardIndex >= len(s.dataDirs) {
		return "", fmt.Errorf("contentstore: shard index %d out of range", shardIndex)
	}
	path := filepath.Join(s.dataDirs[shardIndex], "content", contentHash+".txt")
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("contentstore: read %q: %w", path, err)
	}
	return string(buf), nil
}
