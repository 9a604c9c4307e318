// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package util

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/term"
)

// Source identifies the originator of console output.
type Source int

const (
	Firmware Source = iota
	Supervisor

	sources
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// BufferedLog collects console output one line at a time per source, to
// avoid interleaved logs when firmware and supervisor log simultaneously.
type BufferedLog struct {
	sync.Mutex

	// Output receives flushed lines when Terminal is not set.
	Output io.Writer
	// Terminal, when set, receives flushed lines colored by source.
	Terminal *term.Terminal

	buf [sources]bytes.Buffer
}

func (l *BufferedLog) flush(src Source) {
	buf := &l.buf[src]

	if buf.Len() == 0 {
		return
	}

	switch {
	case l.Terminal != nil:
		color := l.Terminal.Escape.Green

		if src == Supervisor {
			color = l.Terminal.Escape.Red
		}

		l.Terminal.Write(color)
		l.Terminal.Write(buf.Bytes())
		l.Terminal.Write(l.Terminal.Escape.Reset)
	case l.Output != nil:
		l.Output.Write(buf.Bytes())
	}

	buf.Reset()
}

// Log buffers c, the buffer is flushed on newline or when full.
func (l *BufferedLog) Log(c byte, src Source) {
	l.Lock()
	defer l.Unlock()

	buf := &l.buf[src]
	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		l.flush(src)
	}
}

// Flush writes out any partial line.
func (l *BufferedLog) Flush() {
	l.Lock()
	defer l.Unlock()

	for src := Source(0); src < sources; src++ {
		l.flush(src)
	}
}

type sourceWriter struct {
	l   *BufferedLog
	src Source
}

func (w sourceWriter) Write(p []byte) (int, error) {
	for _, c := range p {
		w.l.Log(c, w.src)
	}

	return len(p), nil
}

// Writer returns an io.Writer logging as src.
func (l *BufferedLog) Writer(src Source) io.Writer {
	return sourceWriter{l, src}
}
