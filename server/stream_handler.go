package server

import (
	"errors"
	"net/http"
	"strconv"

	"Sonora/core/stream"
	"Sonora/logger"
)

// StreamSongHandler 按 Range 请求分块输出音频
func (h *APIHandler) StreamSongHandler(w http.ResponseWriter, r *http.Request) {
	songID := pathID(r, "id")
	rangeHeader := r.Header.Get("Range")

	st, err := h.streamer.Open(r.Context(), songID, rangeHeader)
	if err != nil {
		var unsatisfiable *stream.RangeNotSatisfiableError
		switch {
		case errors.Is(err, stream.ErrAssetNotFound):
			writeError(w, http.StatusNotFound, "Song not found")
		case errors.Is(err, stream.ErrFileNotFound):
			logger.Warn("[Stream] 音频文件缺失", logger.Int64("songId", songID))
			writeError(w, http.StatusNotFound, "Song file not found")
		case errors.Is(err, stream.ErrInvalidRange):
			writeError(w, http.StatusBadRequest, "Invalid range header")
		case errors.As(err, &unsatisfiable):
			w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(unsatisfiable.Size, 10))
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "Requested range not satisfiable")
		default:
			internalError(w, "[Stream] 打开音频失败", err, logger.Int64("songId", songID))
		}
		return
	}
	defer st.Close()

	st.SetHeaders(w.Header())
	w.WriteHeader(st.StatusCode())
	if r.Method == http.MethodHead {
		return
	}

	written, err := st.WriteTo(r.Context(), w)
	if err != nil {
		// 客户端断开或 seek 失败，响应头已发出，只能记录
		logger.Debug("[Stream] 传输中断",
			logger.Int64("songId", songID),
			logger.Int64("written", written),
			logger.ErrorField(err))
		return
	}

	logger.Debug("[Stream] 传输完成",
		logger.Int64("songId", songID),
		logger.String("range", st.Range.ContentRange(st.Size)),
		logger.Int64("written", written))
}
