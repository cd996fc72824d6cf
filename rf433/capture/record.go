package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

var (
	ErrRecordTooLarge = errors.New("capture: record data exceeds 255 bytes")
	ErrTruncated      = errors.New("capture: truncated record")
)

// MaxRecordSize is the largest data length a record header can express.
const MaxRecordSize = 0xff

// Flags annotate a record.
type Flags uint8

const (
	// FlagAuthentic marks a packet the receiver is expected to accept.
	FlagAuthentic Flags = 1 << 0
	// FlagResync marks a record whose data is a schedule snapshot the
	// receiver restores before the next packet, standing in for an
	// out-of-band counter resynchronisation.
	FlagResync Flags = 1 << 1
)

func (f Flags) String() string {
	switch {
	case f&FlagResync != 0:
		return "resync"
	case f&FlagAuthentic != 0:
		return "authentic"
	default:
		return "reject"
	}
}

// Record is one captured packet.
type Record struct {
	Flags Flags
	Data  []byte
}

// Writer appends records to a compressed stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	zw  *lz4.Writer
	buf [2]byte
	n   int
}

// CompressionLevel controls the speed/ratio tradeoff of a Writer.
type CompressionLevel int

const (
	CompressionFast    CompressionLevel = iota
	CompressionDefault
	CompressionBest
)

func NewWriter(w io.Writer, level CompressionLevel) (*Writer, error) {
	zw := lz4.NewWriter(w)
	var opt lz4.Option
	switch level {
	case CompressionFast:
		opt = lz4.CompressionLevelOption(lz4.Fast)
	case CompressionBest:
		opt = lz4.CompressionLevelOption(lz4.Level9)
	default:
		opt = lz4.CompressionLevelOption(lz4.Level4)
	}
	if err := zw.Apply(opt); err != nil {
		return nil, err
	}
	return &Writer{zw: zw}, nil
}

// Write appends a record.
func (w *Writer) Write(r Record) error {
	if len(r.Data) > MaxRecordSize {
		return fmt.Errorf("%w: %d", ErrRecordTooLarge, len(r.Data))
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf[0] = byte(len(r.Data))
	w.buf[1] = byte(r.Flags)
	if _, err := w.zw.Write(w.buf[:]); err != nil {
		return err
	}
	if _, err := w.zw.Write(r.Data); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush compresses and writes out buffered records.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zw.Flush()
}

// Close flushes the stream and writes the LZ4 end mark. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zw.Close()
}

// Reader iterates the records of a compressed stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(lz4.NewReader(r))}
}

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}
	data := make([]byte, hdr[0])
	if _, err := io.ReadFull(r.r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Record{}, ErrTruncated
		}
		return Record{}, err
	}
	return Record{Flags: Flags(hdr[1]), Data: data}, nil
}

// ReadAll drains r.
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
