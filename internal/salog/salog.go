/*
 * Salis - Wrapper for slog
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package salog wraps log/slog with a handler that writes records to a log
// file and mirrors them to stderr when debug tracing is enabled (or the
// record is above debug level regardless). A cycle boundary can fire the
// same lifecycle event — a cosmic-ray hit, a kill-when-full retirement —
// once per core on every sync window, so the handler folds runs of
// consecutive identical records into a single line carrying a repeat
// count instead of flooding the log with near-duplicates.
package salog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Handler writes formatted records to a file, mirroring to stderr under
// the conditions described above, and coalesces a run of consecutive
// records sharing the same level, message, and attributes.
type Handler struct {
	out   io.Writer
	h     slog.Handler
	mu    *sync.Mutex
	debug bool

	pendingKey    string
	pendingLine   string
	pendingMirror bool
	repeat        int
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, debug: h.debug}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, debug: h.debug}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	attrs := make([]string, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a.Value.String())
		return true
	})
	key := strings.Join(append([]string{level, r.Message}, attrs...), " ")
	line := strings.Join(append([]string{r.Time.Format("2006/01/02 15:04:05"), level, r.Message}, attrs...), " ")
	mirror := h.debug || r.Level > slog.LevelDebug

	h.mu.Lock()
	defer h.mu.Unlock()

	// Warn/Error records bypass coalescing entirely: they must reach the
	// file the moment they're logged, not wait on a later call or an
	// explicit Flush that an os.Exit path might skip.
	if r.Level >= slog.LevelWarn {
		if err := h.flushLocked(); err != nil {
			return err
		}
		h.pendingKey = ""
		return h.writeLocked(line, mirror)
	}

	if key == h.pendingKey {
		h.repeat++
		h.pendingLine = line
		return nil
	}

	err := h.flushLocked()
	h.pendingKey, h.pendingLine, h.pendingMirror, h.repeat = key, line, mirror, 1
	return err
}

// flushLocked writes whatever record is currently pending, suffixed with
// its repeat count when it fired more than once in a row. mu must already
// be held.
func (h *Handler) flushLocked() error {
	if h.pendingKey == "" {
		return nil
	}
	line := h.pendingLine
	if h.repeat > 1 {
		line += " (x" + strconv.Itoa(h.repeat) + ")"
	}
	return h.writeLocked(line, h.pendingMirror)
}

// writeLocked writes one formatted line to the file and, if mirror is
// set, to stderr. mu must already be held.
func (h *Handler) writeLocked(line string, mirror bool) error {
	b := []byte(line + "\n")

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}
	if mirror {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// Flush forces out whatever record is still pending. Host programs must
// call this before exit, or a trailing run of coalesced records is lost.
func (h *Handler) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLocked()
}

// SetDebug toggles stderr mirroring of debug-level records.
func (h *Handler) SetDebug(debug bool) {
	h.debug = debug
}

// NewHandler builds a Handler writing to file, with the given slog
// options governing the underlying text handler.
func NewHandler(file io.Writer, opts *slog.HandlerOptions, debug bool) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out: file,
		h: slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}
