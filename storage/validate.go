package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"Sonora/core/audio"
)

// MinAudioSize 小于 1KB 的文件不可能是有效音频
const MinAudioSize = 1024

// IsAudioUpload accepts uploads declared as audio/* or carrying a known audio extension.
func IsAudioUpload(filename, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "audio/") {
		return true
	}
	return audio.IsAudioExt(filepath.Ext(filename))
}

// IsImageUpload accepts uploads declared as image/* or carrying a known image extension.
func IsImageUpload(filename, contentType string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return true
	}
	return audio.IsImageExt(filepath.Ext(filename))
}

// ValidateAudio checks the stored file is large enough and starts with a known audio signature.
func (s *LocalStore) ValidateAudio(key string) error {
	f, err := os.Open(s.Path(key))
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAudio, info.Size())
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	if !hasAudioSignature(header) {
		return ErrInvalidAudio
	}
	return nil
}

func hasAudioSignature(h []byte) bool {
	switch {
	case bytes.HasPrefix(h, []byte("ID3")): // mp3 with ID3 tag
		return true
	case h[0] == 0xFF && h[1]&0xE0 == 0xE0: // mpeg frame sync
		return true
	case bytes.HasPrefix(h, []byte("RIFF")): // wav
		return true
	case bytes.HasPrefix(h, []byte("OggS")):
		return true
	case bytes.HasPrefix(h, []byte("fLaC")):
		return true
	case bytes.Equal(h[4:8], []byte("ftyp")): // m4a / mp4
		return true
	}
	return false
}
