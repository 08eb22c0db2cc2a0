package pii

import (
	"io"
	"strings"
)

// Restore replaces every placeholder of m found in text with its original
// value. Tokens missing from m, and tokens that were altered on the way,
// are left as they are. An empty key matches nowhere.
func Restore(text string, m Mapping) string {
	for token, original := range m {
		if token == "" {
			continue
		}
		text = strings.ReplaceAll(text, token, original)
	}
	return text
}

// Restorer restores placeholders in text that arrives in chunks, such as a
// streamed model reply. A token split across two chunks is held back until
// it is complete. Keys are expected to be placeholder tokens.
type Restorer struct {
	mapping Mapping
	longest int
	pending string
}

// NewRestorer creates a Restorer for m.
func NewRestorer(m Mapping) *Restorer {
	longest := 0
	for k := range m {
		if len(k) > longest {
			longest = len(k)
		}
	}
	return &Restorer{mapping: m, longest: longest}
}

// Push adds a chunk and returns the restored text that is safe to emit.
func (r *Restorer) Push(chunk string) string {
	buf := r.pending + chunk
	cut := r.holdFrom(buf)
	r.pending = buf[cut:]
	return Restore(buf[:cut], r.mapping)
}

// Flush returns whatever is still held back, restored as far as possible.
func (r *Restorer) Flush() string {
	out := Restore(r.pending, r.mapping)
	r.pending = ""
	return out
}

// holdFrom returns the offset of the earliest suffix of buf that could
// still grow into one of the mapping's tokens.
func (r *Restorer) holdFrom(buf string) int {
	if r.longest == 0 {
		return len(buf)
	}
	start := len(buf) - r.longest + 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(buf); i++ {
		if r.partialToken(buf[i:]) {
			return i
		}
	}
	return len(buf)
}

func (r *Restorer) partialToken(s string) bool {
	for k := range r.mapping {
		if len(s) < len(k) && strings.HasPrefix(k, s) {
			return true
		}
	}
	return false
}

// RestoringWriter restores placeholders in everything written through it.
// Close must be called to flush a trailing partial token.
type RestoringWriter struct {
	w io.Writer
	r *Restorer
}

// NewRestoringWriter wraps w.
func NewRestoringWriter(w io.Writer, m Mapping) *RestoringWriter {
	return &RestoringWriter{w: w, r: NewRestorer(m)}
}

func (rw *RestoringWriter) Write(p []byte) (int, error) {
	if out := rw.r.Push(string(p)); out != "" {
		if _, err := io.WriteString(rw.w, out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close writes any held-back text. It does not close the underlying writer.
func (rw *RestoringWriter) Close() error {
	if out := rw.r.Flush(); out != "" {
		_, err := io.WriteString(rw.w, out)
		return err
	}
	return nil
}
