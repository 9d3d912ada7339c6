package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
)

// ErrConsumed is returned when a Stream is read after it was already consumed.
var ErrConsumed = errors.New("archive stream already consumed")

const chunkSize = 64 * 1024

// entry is one file of the archive: either a file on disk or bytes built in memory.
type entry struct {
	name     string
	path     string
	data     []byte
	modified time.Time
}

// Stream produces the zip archive chunk by chunk. It is forward-only: it cannot
// be rewound, and it must be consumed exactly once, either by calling Next
// until io.EOF or by a single WriteTo.
//
// Nothing is read from disk before the first chunk is requested.
type Stream struct {
	entries []entry
	next    int

	buf bytes.Buffer
	zw  *zip.Writer
	w   io.Writer     // writer of the current zip entry
	cur io.ReadCloser // file being copied into w
	tmp []byte

	closed   bool // zip central directory written
	started  bool
	finished bool
	err      error
}

func newStream(entries []entry) *Stream {
	s := &Stream{entries: entries, tmp: make([]byte, chunkSize)}
	s.zw = zip.NewWriter(&s.buf)
	s.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return s
}

// Names lists the archive entries in the order they will be written.
func (s *Stream) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Next returns the next chunk of the archive, or io.EOF once everything was produced.
func (s *Stream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.started = true
	for s.buf.Len() == 0 {
		if s.closed {
			s.finished = true
			return nil, io.EOF
		}
		if err := s.step(); err != nil {
			s.fail(err)
			return nil, s.err
		}
	}
	out := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	return out, nil
}

// WriteTo writes the whole archive to w. It fails with ErrConsumed if the
// stream was already read from.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.started {
		return 0, ErrConsumed
	}
	var total int64
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			s.err = ErrConsumed
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			s.fail(fmt.Errorf("failed to write archive: %w", err))
			return total, err
		}
	}
}

// Close releases any file the stream still holds. Closing a partially read
// stream abandons it.
func (s *Stream) Close() error {
	if s.err == nil && !s.finished {
		s.err = ErrConsumed
	}
	if s.cur != nil {
		err := s.cur.Close()
		s.cur = nil
		return err
	}
	return nil
}

func (s *Stream) fail(err error) {
	if s.cur != nil {
		_ = s.cur.Close()
		s.cur = nil
	}
	s.err = err
}

// step advances by one unit of work: a chunk of the current file, the start of
// the next entry, or the end of the archive.
func (s *Stream) step() error {
	switch {
	case s.cur != nil:
		n, err := s.cur.Read(s.tmp)
		if n > 0 {
			if _, werr := s.w.Write(s.tmp[:n]); werr != nil {
				return archiveError("compress", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			cerr := s.cur.Close()
			s.cur = nil
			if cerr != nil {
				return archiveError("read", cerr)
			}
		} else if err != nil {
			return archiveError("read", err)
		}

	case s.next < len(s.entries):
		e := s.entries[s.next]
		s.next++
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: e.modified}
		w, err := s.zw.CreateHeader(hdr)
		if err != nil {
			return archiveError("add "+e.name, err)
		}
		s.w = w
		if e.path == "" {
			if _, err := w.Write(e.data); err != nil {
				return archiveError("add "+e.name, err)
			}
			break
		}
		f, err := os.Open(e.path)
		if err != nil {
			return archiveError("open "+e.name, err)
		}
		s.cur = f

	default:
		if err := s.zw.Close(); err != nil {
			return archiveError("finish", err)
		}
		s.closed = true
		return nil
	}
	return s.zw.Flush()
}
