// Package tail follows a text file like "tail -f" and redacts PII from
// each line before it is shown.
//
// Lines are redacted independently: every line has its own mapping and
// its placeholder counters start at 1.
package tail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

// ErrRotated is returned when the file is rotated away and FollowRotate
// is off.
var ErrRotated = errors.New("file rotated")

const (
	maxLineBytes   = 1024 * 1024
	rotateWait     = 10 * time.Second
	rotatePollTick = 100 * time.Millisecond
)

// Line is one redacted line of the file.
type Line struct {
	Seq      int         // 1-based order in which the line was read
	Raw      string      // Line as written, without the newline
	Redacted string      // Raw with PII replaced by placeholders
	Mapping  pii.Mapping // Placeholder to original value for this line
}

// Options configures the tailer behavior.
type Options struct {
	FilePath     string
	Lines        int  // Number of initial lines to show
	Follow       bool // Keep reading as the file grows
	FollowRotate bool // Reopen the file when it is rotated

	// Pattern filters lines. It is matched against the redacted text, so
	// "<<EMAIL_" selects lines that contained an email address.
	Pattern *regexp.Regexp

	// Redactor defaults to all built-in rules.
	Redactor *pii.Redactor

	Logger     *slog.Logger
	OutputFunc func(Line) error
}

// Tailer handles tailing a file.
type Tailer struct {
	opts    Options
	file    *os.File
	offset  int64
	seq     int
	watcher *fsnotify.Watcher
}

// New creates a Tailer.
func New(opts Options) (*Tailer, error) {
	if opts.FilePath == "" {
		return nil, errors.New("file path is required")
	}
	if opts.OutputFunc == nil {
		return nil, errors.New("output func is required")
	}
	if opts.Redactor == nil {
		r, err := pii.NewRedactor()
		if err != nil {
			return nil, err
		}
		opts.Redactor = r
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tailer{opts: opts}, nil
}

// Run shows the initial lines and, when following, blocks until ctx is
// canceled or an error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	f, err := os.Open(t.opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	t.file = f
	defer t.close()

	if err := t.readInitialLines(); err != nil {
		return fmt.Errorf("failed to read initial lines: %w", err)
	}

	if !t.opts.Follow {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}
	t.watcher = watcher
	if err := watcher.Add(t.opts.FilePath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", t.opts.FilePath, err)
	}

	return t.watch(ctx)
}

// readInitialLines shows the last opts.Lines lines and leaves the offset
// at the end of the last complete line.
func (t *Tailer) readInitialLines() error {
	stat, err := t.file.Stat()
	if err != nil {
		return err
	}
	size := stat.Size()
	if t.opts.Lines <= 0 || size == 0 {
		t.offset = size
		return nil
	}

	// Assume lines average no more than 600 bytes.
	start := max(size-int64(t.opts.Lines)*600, 0)
	if _, err := t.file.Seek(start, io.SeekStart); err != nil {
		return err
	}

	lines, consumed, err := completeLines(t.file)
	if err != nil {
		return err
	}
	t.offset = start + consumed

	// The first line is probably partial when reading from the middle.
	if start > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	lines = nonEmpty(lines)
	if len(lines) > t.opts.Lines {
		lines = lines[len(lines)-t.opts.Lines:]
	}

	for _, raw := range lines {
		if err := t.emit(raw); err != nil {
			return err
		}
	}
	return nil
}

// completeLines reads newline-terminated lines from r. A trailing line
// without a newline is not returned and not counted in consumed, so it is
// picked up once the writer finishes it.
func completeLines(r io.Reader) (lines []string, consumed int64, err error) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		b, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			consumed += int64(len(b))
			lines = append(lines, string(bytes.TrimRight(b, "\r\n")))
		case errors.Is(err, bufio.ErrBufferFull):
			// Over-long line: keep reading until its end.
			n, rest, err := skipLong(br, b)
			if err != nil {
				return lines, consumed, err
			}
			if rest == nil {
				return lines, consumed, nil
			}
			consumed += n
			lines = append(lines, string(bytes.TrimRight(rest, "\r\n")))
		case errors.Is(err, io.EOF):
			return lines, consumed, nil
		default:
			return lines, consumed, err
		}
	}
}

// skipLong assembles a line longer than the reader's buffer, truncated to
// maxLineBytes. It returns a nil line if EOF arrives before the newline.
func skipLong(br *bufio.Reader, head []byte) (int64, []byte, error) {
	line := append([]byte(nil), head...)
	n := int64(len(head))
	for {
		b, err := br.ReadSlice('\n')
		n += int64(len(b))
		if len(line) < maxLineBytes {
			line = append(line, b[:min(len(b), maxLineBytes-len(line))]...)
		}
		switch {
		case err == nil:
			return n, line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return 0, nil, nil
		default:
			return 0, nil, err
		}
	}
}

func nonEmpty(lines []string) []string {
	out := lines[:0]
	for _, l := range lines {
		if len(bytes.TrimSpace([]byte(l))) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// emit redacts raw, applies the pattern filter and hands the line on.
func (t *Tailer) emit(raw string) error {
	t.seq++
	redacted, mapping := t.opts.Redactor.Redact(raw)
	if t.opts.Pattern != nil && !t.opts.Pattern.MatchString(redacted) {
		return nil
	}
	return t.opts.OutputFunc(Line{
		Seq:      t.seq,
		Raw:      raw,
		Redacted: redacted,
		Mapping:  mapping,
	})
}

func (t *Tailer) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			if err := t.handleEvent(ctx, event); err != nil {
				return err
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Write):
		return t.readNewContent()
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return t.handleRotation(ctx)
	}
	return nil
}

// readNewContent shows lines completed since the last read. A file that
// shrank was truncated in place and is read again from the start.
func (t *Tailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < t.offset {
		t.opts.Logger.Info("file truncated, reading from start", "path", t.opts.FilePath)
		t.offset = 0
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}
	lines, consumed, err := completeLines(t.file)
	if err != nil {
		return err
	}
	t.offset += consumed

	for _, raw := range nonEmpty(lines) {
		if err := t.emit(raw); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tailer) handleRotation(ctx context.Context) error {
	if !t.opts.FollowRotate {
		return ErrRotated
	}

	// Anything written before the rename is still readable.
	if err := t.readNewContent(); err != nil {
		t.opts.Logger.Debug("final read before rotation failed", "error", err)
	}
	t.file.Close()
	t.file = nil

	timeout := time.After(rotateWait)
	ticker := time.NewTicker(rotatePollTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return errors.New("timeout waiting for rotated file to reappear")
		case <-ticker.C:
			f, err := os.Open(t.opts.FilePath)
			if err != nil {
				continue
			}
			t.file = f
			t.offset = 0
			if err := t.watcher.Add(t.opts.FilePath); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}
			t.opts.Logger.Info("file rotated, following new file", "path", t.opts.FilePath)
			// The new file may already hold lines written before the watch.
			return t.readNewContent()
		}
	}
}

func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
	}
	if t.watcher != nil {
		t.watcher.Close()
	}
}
