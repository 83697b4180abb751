package transport

import (
	"bytes"
	"io"
	"strings"
)

// lineReader splits a time-bounded byte stream into lines. The underlying
// reader returns (0, nil) when its timeout expires, which surfaces as
// ErrNoData. Each ReadLine issues at most one Read.
type lineReader struct {
	src     io.Reader
	buf     []byte
	pending []byte
}

func newLineReader(src io.Reader) *lineReader {
	return &lineReader{
		src: src,
		buf: make([]byte, 256),
	}
}

func (r *lineReader) ReadLine() (string, error) {
	if line, ok := r.take(); ok {
		return line, nil
	}

	n, err := r.src.Read(r.buf)
	if n > 0 {
		r.pending = append(r.pending, r.buf[:n]...)
	}
	if err != nil {
		return "", err
	}

	if line, ok := r.take(); ok {
		return line, nil
	}

	// An unterminated run this long is garbage; hand it on so the parser
	// rejects it instead of growing without bound.
	if len(r.pending) >= maxLineLength {
		line := string(r.pending)
		r.pending = r.pending[:0]
		return line, nil
	}

	return "", ErrNoData
}

func (r *lineReader) take() (string, bool) {
	i := bytes.IndexByte(r.pending, '\n')
	if i < 0 {
		return "", false
	}

	line := strings.TrimRight(string(r.pending[:i]), "\r")
	r.pending = append(r.pending[:0], r.pending[i+1:]...)

	return line, true
}
