// internal/workers/export/archive-build/models.go
package archivebuild

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// Entry is one image file of an archive.
type Entry struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// Archive maps unique filenames to image bytes, in result order. It is
// immutable once built.
type Archive struct {
	entries  []Entry
	modified time.Time
}

func (a *Archive) Len() int {
	return len(a.entries)
}

func (a *Archive) Names() []string {
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		e.Data = append([]byte(nil), e.Data...)
		out[i] = e
	}
	return out
}

// WriteTo serializes the archive as a zip stream.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	for _, e := range a.entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: a.modified,
		})
		if err != nil {
			return cw.n, fmt.Errorf("create entry %s: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return cw.n, fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("finalize zip: %w", err)
	}
	return cw.n, nil
}

func (a *Archive) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := a.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
