package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Reference record layout: uint32 little-endian offset followed by a
// NUL-padded ASCII path. 484 octets fits in one atomic pipe write.
const (
	MaxSourceLength = 480
	ReferenceSize   = 4 + MaxSourceLength
)

// Reference points a worker at a bundle inside a shared source.
// It never carries payload bytes.
type Reference struct {
	Offset uint32
	Source string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s@%d", r.Source, r.Offset)
}

// MarshalBinary encodes the fixed-size record.
func (r Reference) MarshalBinary() ([]byte, error) {
	if len(r.Source) > MaxSourceLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrSourceTooLong, len(r.Source), MaxSourceLength)
	}
	buf := make([]byte, ReferenceSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.Offset)
	copy(buf[4:], r.Source)
	return buf, nil
}

// UnmarshalBinary decodes a record. Short input is zero-filled like a
// partial struct copy.
func (r *Reference) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("reference record: %w", ErrPacketTooShort)
	}
	r.Offset = binary.LittleEndian.Uint32(data[0:4])
	path := data[4:]
	if len(path) > MaxSourceLength {
		path = path[:MaxSourceLength]
	}
	if i := bytes.IndexByte(path, 0); i >= 0 {
		path = path[:i]
	}
	r.Source = string(path)
	return nil
}

// ReferenceReader reads fixed-size records from a stream that may not
// have a writer yet. A zero-length read means no message has arrived.
type ReferenceReader struct {
	r    io.Reader
	poll time.Duration
	buf  []byte
	n    int
}

// NewReferenceReader wraps r. poll is the wait after an empty read.
func NewReferenceReader(r io.Reader, poll time.Duration) *ReferenceReader {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &ReferenceReader{r: r, poll: poll, buf: make([]byte, ReferenceSize)}
}

// Next blocks until a full record is available or ctx is done.
func (rr *ReferenceReader) Next(ctx context.Context) (Reference, error) {
	for rr.n < ReferenceSize {
		n, err := rr.r.Read(rr.buf[rr.n:])
		rr.n += n
		if err != nil && !errors.Is(err, io.EOF) {
			return Reference{}, fmt.Errorf("read reference: %w", err)
		}
		if n > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return Reference{}, ctx.Err()
		case <-time.After(rr.poll):
		}
	}
	rr.n = 0
	var ref Reference
	if err := ref.UnmarshalBinary(rr.buf); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// WriteReference writes one record to w in a single call.
func WriteReference(w io.Writer, ref Reference) error {
	buf, err := ref.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write reference: %w", err)
	}
	return nil
}
