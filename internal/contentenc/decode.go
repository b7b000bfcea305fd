// Package contentenc undoes HTTP Content-Encoding on buffered response bodies.
package contentenc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DecodeError is returned when an encoding is unsupported or the payload is
// corrupt for the declared encoding.
type DecodeError struct {
	Encoding string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q content-encoding: %v", e.Encoding, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrUnsupported is wrapped by DecodeError for encodings with no decoder.
var ErrUnsupported = errors.New("unsupported content-encoding")

// Decoder decodes bodies. MaxSize bounds the decoded output: bytes past it are
// dropped and the prefix is returned, which still carries the document head.
// Zero disables the bound.
type Decoder struct {
	MaxSize int64
}

// Decode is a convenience wrapper around an unbounded Decoder.
func Decode(body []byte, contentEncoding string) ([]byte, error) {
	return Decoder{}.Decode(body, contentEncoding)
}

// Decode reverses the codings listed in contentEncoding. Stacked codings are
// listed in the order they were applied, so they are undone last to first.
// An empty header means identity.
func (d Decoder) Decode(body []byte, contentEncoding string) ([]byte, error) {
	codings := parseCodings(contentEncoding)

	var (
		r       io.Reader = bytes.NewReader(body)
		closers []func()
		applied []string
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	for i := len(codings) - 1; i >= 0; i-- {
		coding := codings[i]
		if coding == "identity" {
			continue
		}
		next, closer, err := wrap(r, coding)
		if err != nil {
			return nil, err
		}
		r = next
		closers = append(closers, closer)
		applied = append(applied, coding)
	}
	if len(applied) == 0 {
		return d.truncate(body), nil
	}

	if d.MaxSize > 0 {
		r = io.LimitReader(r, d.MaxSize)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Encoding: strings.Join(applied, ", "), Err: err}
	}
	return out, nil
}

func (d Decoder) truncate(body []byte) []byte {
	if d.MaxSize > 0 && int64(len(body)) > d.MaxSize {
		return body[:d.MaxSize]
	}
	return body
}

// wrap returns a reader that undoes coding over r.
func wrap(r io.Reader, coding string) (io.Reader, func(), error) {
	switch coding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, &DecodeError{Encoding: coding, Err: err}
		}
		return zr, func() { _ = zr.Close() }, nil
	case "deflate":
		return inflater(r)
	case "zstd":
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, &DecodeError{Encoding: coding, Err: err}
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, &DecodeError{Encoding: coding, Err: ErrUnsupported}
	}
}

// inflater handles "deflate", which servers send either zlib-wrapped (as the
// RFC says) or as a bare DEFLATE stream. The two-byte zlib header decides.
func inflater(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr[0], hdr[1]) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, nil, &DecodeError{Encoding: "deflate", Err: err}
		}
		return zr, func() { _ = zr.Close() }, nil
	}
	fr := flate.NewReader(br)
	return fr, func() { _ = fr.Close() }, nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: deflate method, window at
// most 32K, and a header checksum divisible by 31.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func parseCodings(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	codings := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		codings = append(codings, p)
	}
	return codings
}
