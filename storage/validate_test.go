package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func padded(header []byte, size int) []byte {
	return append(header, bytes.Repeat([]byte{0}, size-len(header))...)
}

func TestValidateAudio(t *testing.T) {
	store := newTestStore(t)

	cases := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"id3", padded([]byte("ID3valid_audio_data"), 5000), true},
		{"frame sync", padded([]byte{0xFF, 0xFB, 0x90}, 2048), true},
		{"wav", padded([]byte("RIFF\x00\x00\x00\x00WAVE"), 2048), true},
		{"ogg", padded([]byte("OggS"), 2048), true},
		{"flac", padded([]byte("fLaC"), 2048), true},
		{"m4a", padded([]byte("\x00\x00\x00\x20ftypM4A "), 2048), true},
		{"too small", padded([]byte("ID3"), 500), false},
		{"text", bytes.Repeat([]byte("hello "), 400), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, _, err := store.Save(KindSong, "x.mp3", bytes.NewReader(tc.data), 0)
			require.NoError(t, err)

			err = store.ValidateAudio(key)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAudio)
			}
		})
	}
}

func TestUploadTypeChecks(t *testing.T) {
	assert.True(t, IsAudioUpload("a.bin", "audio/mpeg"))
	assert.True(t, IsAudioUpload("a.flac", "application/octet-stream"))
	assert.False(t, IsAudioUpload("a.txt", "text/plain"))

	assert.True(t, IsImageUpload("c.bin", "image/png"))
	assert.True(t, IsImageUpload("c.JPG", "application/octet-stream"))
	assert.False(t, IsImageUpload("c.mp3", "audio/mpeg"))
}
