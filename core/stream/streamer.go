// Package stream serves stored audio files over HTTP with single byte-range support.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"

	"Sonora/core/audio"
	"Sonora/storage"
)

// ChunkSize is the size of each read from disk while streaming.
const ChunkSize = 1 << 20

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrFileNotFound  = errors.New("asset file not found")
)

// Asset is a streamable media record.
type Asset struct {
	ID       int64
	FilePath string // storage key
}

// AssetFinder looks up assets by id. A missing asset is reported as (nil, nil).
type AssetFinder interface {
	FindAsset(ctx context.Context, id int64) (*Asset, error)
}

// FileOpener opens stored files by key.
type FileOpener interface {
	Open(key string) (storage.File, error)
}

// Streamer 负责 Range 请求的解析和分块输出
type Streamer struct {
	assets    AssetFinder
	files     FileOpener
	chunkSize int
}

// NewStreamer creates a streamer reading through files.
func NewStreamer(assets AssetFinder, files FileOpener) *Streamer {
	return &Streamer{assets: assets, files: files, chunkSize: ChunkSize}
}

// Stream is an opened, range-resolved asset ready to be copied to a client.
type Stream struct {
	Asset     Asset
	Size      int64
	MediaType string
	Range     ByteRange
	Partial   bool

	file      storage.File
	chunkSize int
}

// Open resolves the asset, opens its file and applies rangeHeader.
// The caller must Close the returned stream.
func (s *Streamer) Open(ctx context.Context, id int64, rangeHeader string) (*Stream, error) {
	asset, err := s.assets.FindAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup asset %d: %w", id, err)
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}
	if asset.FilePath == "" {
		return nil, ErrFileNotFound
	}

	f, err := s.files.Open(asset.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open asset %d: %w", id, err)
	}

	// 以打开后的句柄为准获取大小
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat asset %d: %w", id, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		f.Close()
		return nil, ErrFileNotFound
	}

	br, err := ParseRange(rangeHeader, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Stream{
		Asset:     *asset,
		Size:      info.Size(),
		MediaType: audio.MediaType(asset.FilePath),
		Range:     br,
		Partial:   rangeHeader != "",
		file:      f,
		chunkSize: s.chunkSize,
	}, nil
}

// StatusCode is 206 for range requests and 200 otherwise.
func (st *Stream) StatusCode() int {
	if st.Partial {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

// SetHeaders writes the streaming response headers.
func (st *Stream) SetHeaders(h http.Header) {
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", st.MediaType)
	h.Set("Content-Length", strconv.FormatInt(st.Range.Length(), 10))
	h.Set("Content-Range", st.Range.ContentRange(st.Size))
}

// WriteTo copies exactly the requested range to w in chunks, stopping early when ctx is done.
func (st *Stream) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	if _, err := st.file.Seek(st.Range.Start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek to %d: %w", st.Range.Start, err)
	}

	buf := make([]byte, st.chunkSize)
	remaining := st.Range.Length()
	var written int64

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		read, err := io.ReadFull(st.file, buf[:n])
		if read > 0 {
			wn, werr := w.Write(buf[:read])
			written += int64(wn)
			remaining -= int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			// 文件在传输途中被截断
			return written, fmt.Errorf("read asset %d at %d: %w", st.Asset.ID, st.Range.Start+written, err)
		}
	}
	return written, nil
}

// Close releases the file handle.
func (st *Stream) Close() error {
	return st.file.Close()
}
