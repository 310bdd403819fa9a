package audio

import (
	"path/filepath"
	"strings"
)

// DefaultMediaType is served for audio files with an unrecognised extension.
const DefaultMediaType = "audio/mpeg"

var audioMediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
}

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MediaType 根据扩展名返回音频 MIME 类型，未知扩展名返回 audio/mpeg
func MediaType(path string) string {
	if mt, ok := audioMediaTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return DefaultMediaType
}

// IsAudioExt reports whether ext (with the dot) is one of the streamable audio formats.
func IsAudioExt(ext string) bool {
	_, ok := audioMediaTypes[strings.ToLower(ext)]
	return ok
}

// ImageMediaType 返回封面/头像的 MIME 类型，默认 image/jpeg
func ImageMediaType(path string) string {
	if mt, ok := imageMediaTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/jpeg"
}

// IsImageExt reports whether ext is an accepted image extension.
func IsImageExt(ext string) bool {
	_, ok := imageMediaTypes[strings.ToLower(ext)]
	return ok
}
