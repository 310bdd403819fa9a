package server

import (
	"errors"
	"io"
	"net/http"

	"Sonora/core/audio"
	"Sonora/logger"
	"Sonora/storage"
)

// multipartMemory 解析表单时保存在内存中的上限，超出部分写临时文件
const multipartMemory = 32 << 20

// saveFormFile 保存表单中的文件字段。字段不存在时 key 为空且 err 为 nil
func (h *APIHandler) saveFormFile(r *http.Request, field string, kind storage.Kind, maxSize int64,
	accept func(filename, contentType string) bool) (string, error) {

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	if header.Filename == "" {
		return "", nil
	}
	if !accept(header.Filename, header.Header.Get("Content-Type")) {
		return "", storage.ErrInvalidType
	}

	key, written, err := h.store.Save(kind, header.Filename, file, maxSize)
	if err != nil {
		return "", err
	}

	logger.Debug("文件已保存",
		logger.String("field", field),
		logger.String("key", key),
		logger.Int64("size", written))
	return key, nil
}

// mirrorFile 上传成功后异步同步到 MinIO
func (h *APIHandler) mirrorFile(key, contentType string) {
	h.mirror.Upload(key, h.store.Path(key), contentType)
}

// removeFile 删除本地文件和镜像，失败只记录日志
func (h *APIHandler) removeFile(key string) {
	if key == "" {
		return
	}
	if err := h.store.Remove(key); err != nil {
		logger.Warn("删除文件失败", logger.String("key", key), logger.ErrorField(err))
	}
	h.mirror.Remove(key)
}

// saveImage 保存图片字段并返回 key；错误已写入响应时 ok 为 false
func (h *APIHandler) saveImage(w http.ResponseWriter, r *http.Request, field string, kind storage.Kind, invalidMsg string) (string, bool) {
	key, err := h.saveFormFile(r, field, kind, h.cfg.MaxImageSize, storage.IsImageUpload)
	switch {
	case errors.Is(err, storage.ErrInvalidType):
		writeError(w, http.StatusBadRequest, invalidMsg)
		return "", false
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "Image file too large")
		return "", false
	case err != nil:
		internalError(w, "保存图片失败", err, logger.String("field", field))
		return "", false
	}
	if key != "" {
		h.mirrorFile(key, audio.ImageMediaType(key))
	}
	return key, true
}

// serveImage 输出存储中的图片
func (h *APIHandler) serveImage(w http.ResponseWriter, key, notFoundMsg string) {
	if key == "" {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	f, err := h.store.Open(key)
	if err != nil {
		logger.Warn("图片文件不存在", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", audio.ImageMediaType(key))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", itoa(info.Size()))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, f); err != nil {
		logger.Debug("图片传输中断", logger.String("key", key), logger.ErrorField(err))
	}
}
