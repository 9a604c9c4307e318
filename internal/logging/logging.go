// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package logging implements the firmware diagnostic console, a single
// lock-protected serial transmitter shared by sequential code and trap
// handlers.
//
// The console is set once during peripheral bring-up, any writer reaching it
// earlier spins until it is available.
package logging

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/usbarmory/GoTEE-firmware/internal/spin"
)

// ErrWouldBlock is returned by a Transmitter that is not ready to accept
// data, the operation is retried until it completes or fails.
var ErrWouldBlock = errors.New("transmitter not ready")

// ErrUnavailable is returned by non-blocking operations on a console which
// has not been set, or is held by another writer.
var ErrUnavailable = errors.New("console unavailable")

// Transmitter represents a byte-at-a-time serial transmitter.
type Transmitter interface {
	io.ByteWriter
	Flush() error
}

// Error represents a transmitter hardware fault.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("console %s, %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var crlf = []byte("\r\n")

// Writer gives exclusive access to the console transmitter, it is only valid
// within the function passed to Singleton.With.
type Writer struct {
	tx Transmitter
}

func block(fn func() error) error {
	for {
		err := fn()

		if !errors.Is(err, ErrWouldBlock) {
			return err
		}

		spin.Yield()
	}
}

// WriteBytes transmits every byte of buf and flushes the transmitter.
func (w *Writer) WriteBytes(buf []byte) (err error) {
	for _, c := range buf {
		if err = block(func() error { return w.tx.WriteByte(c) }); err != nil {
			return &Error{Op: "write", Err: err}
		}
	}

	if err = block(w.tx.Flush); err != nil {
		return &Error{Op: "flush", Err: err}
	}

	return
}

// WriteString transmits s and flushes the transmitter.
func (w *Writer) WriteString(s string) error {
	return w.WriteBytes([]byte(s))
}

// Singleton is the process-wide console instance.
type Singleton struct {
	once spin.Once
	lock spin.Lock
	tx   Transmitter
}

// Default is the console used by the firmware.
var Default = &Singleton{}

// Set initializes the console with its transmitter. Only the first call has
// an effect, later ones are ignored.
func (s *Singleton) Set(tx Transmitter) {
	s.once.Do(func() {
		s.tx = tx
	})
}

// Ready reports whether the console has been set.
func (s *Singleton) Ready() bool {
	return s.once.Done()
}

// With waits for the console to be set, acquires it and invokes fn with
// exclusive access to the transmitter.
func (s *Singleton) With(fn func(w *Writer) error) error {
	s.once.Wait()

	s.lock.Acquire()
	defer s.lock.Release()

	return fn(&Writer{tx: s.tx})
}

// TryWith is like With but returns ErrUnavailable instead of waiting, it is
// meant for the fault path which must never block.
func (s *Singleton) TryWith(fn func(w *Writer) error) error {
	if !s.once.Done() || !s.lock.TryAcquire() {
		return ErrUnavailable
	}
	defer s.lock.Release()

	return fn(&Writer{tx: s.tx})
}

// Print writes s to the console.
func (s *Singleton) Print(str string) error {
	return s.With(func(w *Writer) error {
		return w.WriteString(str)
	})
}

// Println writes s followed by a CR/LF pair, as a single console operation.
func (s *Singleton) Println(str string) error {
	return s.With(func(w *Writer) (err error) {
		if err = w.WriteString(str); err != nil {
			return
		}

		return w.WriteBytes(crlf)
	})
}

// Printf formats according to a format specifier and writes the result
// followed by a CR/LF pair.
func (s *Singleton) Printf(format string, a ...interface{}) error {
	return s.Println(fmt.Sprintf(format, a...))
}

// Write implements io.Writer to serve as log package output, bare LF line
// terminators are expanded to CR/LF.
func (s *Singleton) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+8)

	for i, c := range p {
		if c == '\n' && (i == 0 || p[i-1] != '\r') {
			buf = append(buf, '\r')
		}

		buf = append(buf, c)
	}

	err = s.With(func(w *Writer) error {
		return w.WriteBytes(buf)
	})

	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// Buffer is an in-memory Transmitter, used as a capture device.
type Buffer struct {
	bytes.Buffer
}

// Flush implements Transmitter.
func (b *Buffer) Flush() error {
	return nil
}
