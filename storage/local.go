package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"Sonora/config"

	"github.com/google/uuid"
)

// Kind 决定文件落在上传目录下的哪个子目录
type Kind string

const (
	KindSong      Kind = "songs"
	KindCover     Kind = "covers"
	KindSongCover Kind = "song_covers"
	KindUserImage Kind = "users"
)

var (
	ErrTooLarge     = errors.New("file too large")
	ErrInvalidType  = errors.New("invalid file type")
	ErrInvalidAudio = errors.New("invalid audio file format")
)

// File is an open stored file.
type File interface {
	io.ReadSeekCloser
	Stat() (fs.FileInfo, error)
}

// LocalStore 本地磁盘存储。数据库中保存相对 key（如 songs/<uuid>.mp3），由 store 解析为磁盘路径
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at cfg.UploadDir.
func NewLocalStore(cfg *config.Config) *LocalStore {
	return &LocalStore{root: cfg.UploadDir}
}

// Root returns the upload directory.
func (s *LocalStore) Root() string {
	return s.root
}

// EnsureDirs creates the upload directory tree.
func (s *LocalStore) EnsureDirs() error {
	for _, k := range []Kind{KindSong, KindCover, KindSongCover, KindUserImage} {
		dir := filepath.Join(s.root, string(k))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create upload dir %s: %w", dir, err)
		}
	}
	return nil
}

// Path 把 key 解析成磁盘路径。绝对路径原样返回
func (s *LocalStore) Path(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Key converts a path below the upload root back to its key.
func (s *LocalStore) Key(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Save writes r under kind with a fresh unique name keeping the extension of filename.
// At most maxSize bytes are accepted; larger uploads are removed and ErrTooLarge returned.
func (s *LocalStore) Save(kind Kind, filename string, r io.Reader, maxSize int64) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	key := string(kind) + "/" + uuid.New().String() + ext
	path := s.Path(key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create dir for %s: %w", key, err)
	}

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", key, err)
	}

	src := r
	if maxSize > 0 {
		src = io.LimitReader(r, maxSize+1)
	}
	written, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write %s: %w", key, copyErr)
	case closeErr != nil:
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to close %s: %w", key, closeErr)
	case maxSize > 0 && written > maxSize:
		os.Remove(path)
		return "", 0, ErrTooLarge
	}
	return key, written, nil
}

// Open opens the file stored under key for reading.
func (s *LocalStore) Open(key string) (File, error) {
	return os.Open(s.Path(key))
}

// Stat returns file info for key.
func (s *LocalStore) Stat(key string) (fs.FileInfo, error) {
	return os.Stat(s.Path(key))
}

// Exists reports whether a regular file is stored under key.
func (s *LocalStore) Exists(key string) bool {
	if key == "" {
		return false
	}
	info, err := s.Stat(key)
	return err == nil && info.Mode().IsRegular()
}

// Remove 删除文件，文件不存在不算错误
func (s *LocalStore) Remove(key string) error {
	if key == "" {
		return nil
	}
	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Walk calls fn for every stored regular file.
func (s *LocalStore) Walk(fn func(key, path string, size int64) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		key, ok := s.Key(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(key, path, info.Size())
	})
}
