package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Slice records are stored back to back:
//
//	u16 name length, name, u8 placed, [4 x u32 placement], u32 data length, data
//
// All integers are big-endian.

func appendRecord(dst []byte, r Record) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(r.Variable)))
	dst = append(dst, r.Variable...)
	if r.Placement != nil {
		dst = append(dst, 1)
		dst = binary.BigEndian.AppendUint32(dst, r.Placement.ULX)
		dst = binary.BigEndian.AppendUint32(dst, r.Placement.ULY)
		dst = binary.BigEndian.AppendUint32(dst, r.Placement.Height)
		dst = binary.BigEndian.AppendUint32(dst, r.Placement.Width)
	} else {
		dst = append(dst, 0)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(r.Data)))
	return append(dst, r.Data...)
}

// ReadRecords decodes every slice record in r.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	for {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("record header: %w", err)
		}
		name := make([]byte, n)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("record name: %w", err)
		}
		var placed uint8
		if err := binary.Read(r, binary.BigEndian, &placed); err != nil {
			return nil, fmt.Errorf("record placement flag: %w", err)
		}
		rec := Record{Variable: string(name)}
		if placed == 1 {
			var p Placement
			if err := binary.Read(r, binary.BigEndian, &p); err != nil {
				return nil, fmt.Errorf("record placement: %w", err)
			}
			rec.Placement = &p
		}
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("record length: %w", err)
		}
		rec.Data = make([]byte, size)
		if _, err := io.ReadFull(r, rec.Data); err != nil {
			return nil, fmt.Errorf("record data: %w", err)
		}
		out = append(out, rec)
	}
}
