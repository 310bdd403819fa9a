package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned for Range headers that are not of the form bytes=<start>-[<end>].
var ErrInvalidRange = errors.New("invalid range header")

// RangeNotSatisfiableError reports a start offset beyond the end of the file.
type RangeNotSatisfiableError struct {
	Size int64
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("range not satisfiable for %d byte file", e.Size)
}

// ByteRange is an inclusive byte range within a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered by the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range header value for a file of size bytes.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange 解析单段 Range 头。
// 空 header 表示整个文件；end 超过文件末尾时截断到 size-1；start 超过文件末尾返回 RangeNotSatisfiableError。
// 多段、后缀（bytes=-N）以及非数字的写法都视为 ErrInvalidRange。
func ParseRange(header string, size int64) (ByteRange, error) {
	if header == "" {
		return ByteRange{Start: 0, End: size - 1}, nil
	}

	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return ByteRange{}, ErrInvalidRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, ErrInvalidRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	start, err := parseOffset(startStr)
	if err != nil {
		return ByteRange{}, err
	}

	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return ByteRange{}, err
		}
		if end < start {
			return ByteRange{}, ErrInvalidRange
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size {
		return ByteRange{}, &RangeNotSatisfiableError{Size: size}
	}
	return ByteRange{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidRange
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidRange
	}
	return n, nil
}
