package bundle

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Compression selects the framing of an encoded bundle
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCompression parses "none", "gzip" or "zstd"
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Detect identifies the framing of data from its leading bytes
func Detect(data []byte) Compression {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return CompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// The zstd decoder is safe for concurrent DecodeAll calls
var (
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
	zstdDecoderOnce sync.Once
)

func getZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDecoder, zstdDecoderErr
}

// Decode decodes an encoded bundle. maxSize bounds both the encoded and the
// decompressed size; zero disables the limit.
func Decode(data []byte, maxSize int64) (*Bundle, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxSize)
	}

	payload, err := decompress(data, maxSize)
	if err != nil {
		return nil, err
	}

	var b Bundle
	if err := msgpack.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("invalid bundle document: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Read reads and decodes a bundle from r
func Read(r io.Reader, maxSize int64) (*Bundle, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return Decode(data, maxSize)
}

func decompress(data []byte, maxSize int64) ([]byte, error) {
	switch Detect(data) {
	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gzip reader: %w", err)
		}
		defer reader.Close()

		var src io.Reader = reader
		if maxSize > 0 {
			src = io.LimitReader(reader, maxSize+1)
		}
		out, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("gzip decompression failed: %w", err)
		}
		if maxSize > 0 && int64(len(out)) > maxSize {
			return nil, fmt.Errorf("%w: decompressed size exceeds %d", ErrTooLarge, maxSize)
		}
		return out, nil

	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		if maxSize > 0 && int64(len(out)) > maxSize {
			return nil, fmt.Errorf("%w: decompressed size exceeds %d", ErrTooLarge, maxSize)
		}
		return out, nil

	default:
		return data, nil
	}
}

// Encode encodes b with the given framing
func Encode(b *Bundle, compression Compression) ([]byte, error) {
	payload, err := msgpack.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}

	switch compression {
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, fmt.Errorf("gzip compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip compression failed: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil

	default:
		return payload, nil
	}
}

// Write encodes b to w
func Write(w io.Writer, b *Bundle, compression Compression) error {
	data, err := Encode(b, compression)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
