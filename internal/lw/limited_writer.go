// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// A naìve truncating writer implementation.
//
// Used to cap output captured from subprocesses: writes pass through up to a
// fixed budget, the excess is silently dropped. Unlike a hard-failing limited
// writer this keeps exec.Cmd happy since Write never reports a short write.
package lw

import "io"

type TruncatingWriter struct {
	// Pass writes through to this Writer
	w io.Writer
	// Remaining byte budget
	n int64
	// Set once the budget has been exceeded
	truncated bool
}

// Truncate wraps w so that at most n bytes are passed through.
func Truncate(w io.Writer, n int64) *TruncatingWriter {
	return &TruncatingWriter{w: w, n: n}
}

// Write implements io.Writer for *TruncatingWriter.
//
// The returned count is always len(b): from the caller's point of view the
// write succeeds in full even when part of it has been dropped.
func (s *TruncatingWriter) Write(b []byte) (int, error) {
	if s.n <= 0 {
		s.truncated = true
		return len(b), nil
	}

	keep := b
	if int64(len(b)) > s.n {
		keep = b[:s.n]
		s.truncated = true
	}
	n, err := s.w.Write(keep)
	s.n -= int64(n)
	if err != nil {
		return n, err
	}
	return len(b), nil
}

// Truncated reports whether any bytes have been dropped so far.
func (s *TruncatingWriter) Truncated() bool {
	return s.truncated
}
