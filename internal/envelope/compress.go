package envelope

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrTooLarge is returned when a body exceeds the read limit after
// decompression.
var ErrTooLarge = errors.New("envelope: body too large")

// ReadBody reads at most limit bytes of r, decoding it according to a
// Content-Encoding value ("", "identity", "gzip", "x-gzip" or "zstd").
func ReadBody(r io.Reader, encoding string, limit int64) ([]byte, error) {
	var src io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		src = r
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		src = zr
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrTooLarge
	}
	return body, nil
}
