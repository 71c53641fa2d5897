// ABOUTME: Self-describing binary encoding for VectorIndex snapshots
// ABOUTME: Little-endian fields, length-prefixed strings, CRC-32 trailer
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"

	"github.com/harper/askdocs/internal/models"
)

// ErrCorruptIndex is returned when persisted index bytes fail validation
var ErrCorruptIndex = errors.New("corrupt vector index")

const (
	indexMagic   = "ADIX"
	indexVersion = uint16(1)

	// magic + version + model length prefix
	minHeaderLen = len(indexMagic) + 2 + 2
	trailerLen   = 4
	maxModelLen  = math.MaxUint16
)

// MarshalBinary encodes the index.
//
// Layout:
//
//	"ADIX" | version u16 | modelLen u16 | model | dim u32 | count u32
//	count × ( id | text | metaCount u32 | metaCount × (key | value) | dim × f32 )
//	crc32(IEEE) of everything above, u32
//
// Strings are u32 length-prefixed. Metadata keys are written sorted so the
// same index always encodes to the same bytes.
func (v *VectorIndex) MarshalBinary() ([]byte, error) {
	if len(v.model) > maxModelLen {
		return nil, fmt.Errorf("model name too long: %d bytes", len(v.model))
	}

	buf := make([]byte, 0, 64+len(v.items)*(v.dimension*4+256))
	buf = append(buf, indexMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, indexVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.model)))
	buf = append(buf, v.model...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(v.dimension))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.items)))

	for _, item := range v.items {
		buf = appendString(buf, item.Chunk.ChunkID)
		buf = appendString(buf, item.Chunk.Text)

		keys := make([]string, 0, len(item.Chunk.Metadata))
		for k := range item.Chunk.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys)))
		for _, k := range keys {
			buf = appendString(buf, k)
			buf = appendString(buf, item.Chunk.Metadata[k])
		}

		for _, f := range item.Vector {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}

	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf)), nil
}

// UnmarshalBinary replaces v with the index encoded in data
func (v *VectorIndex) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeVectorIndex(data)
	if err != nil {
		return err
	}
	*v = *decoded
	return nil
}

// DecodeVectorIndex validates and decodes bytes produced by MarshalBinary
func DecodeVectorIndex(data []byte) (*VectorIndex, error) {
	if len(data) < minHeaderLen+trailerLen {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorruptIndex, len(data))
	}
	if string(data[:len(indexMagic)]) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, data[:len(indexMagic)])
	}
	if version := binary.LittleEndian.Uint16(data[len(indexMagic):]); version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}

	body := data[:len(data)-trailerLen]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerLen:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch (truncated or modified file)", ErrCorruptIndex)
	}

	r := &byteReader{data: body, off: len(indexMagic) + 2}

	modelLen, err := r.readUint16()
	if err != nil {
		return nil, err
	}
	model, err := r.next(int(modelLen))
	if err != nil {
		return nil, err
	}
	dim, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	count, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d chunks with zero dimension", ErrCorruptIndex, count)
	}

	// Every item needs at least three length prefixes plus its vector
	minItem := uint64(12) + uint64(dim)*4
	if uint64(count)*minItem > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: header claims %d chunks but only %d bytes follow",
			ErrCorruptIndex, count, r.remaining())
	}

	idx := &VectorIndex{
		model:     string(model),
		dimension: int(dim),
		items:     make([]models.EmbeddedChunk, 0, count),
	}

	for i := uint32(0); i < count; i++ {
		item, err := r.embeddedChunk(int(dim))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		idx.items = append(idx.items, item)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptIndex, r.remaining())
	}
	return idx, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// byteReader is a bounds-checked cursor over an encoded index
type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.off
}

func (r *byteReader) next(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, fmt.Errorf("%w: unexpected end of data at offset %d (need %d bytes, have %d)",
			ErrCorruptIndex, r.off, n, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) readUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) readUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) readString() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) embeddedChunk(dim int) (models.EmbeddedChunk, error) {
	var item models.EmbeddedChunk
	var err error

	if item.Chunk.ChunkID, err = r.readString(); err != nil {
		return item, err
	}
	if item.Chunk.Text, err = r.readString(); err != nil {
		return item, err
	}

	metaCount, err := r.readUint32()
	if err != nil {
		return item, err
	}
	if metaCount > 0 {
		// Each pair costs at least two length prefixes
		if uint64(metaCount)*8 > uint64(r.remaining()) {
			return item, fmt.Errorf("%w: metadata count %d exceeds remaining data", ErrCorruptIndex, metaCount)
		}
		item.Chunk.Metadata = make(map[string]string, metaCount)
		for j := uint32(0); j < metaCount; j++ {
			k, err := r.readString()
			if err != nil {
				return item, err
			}
			val, err := r.readString()
			if err != nil {
				return item, err
			}
			item.Chunk.Metadata[k] = val
		}
	}

	raw, err := r.next(dim * 4)
	if err != nil {
		return item, err
	}
	item.Vector = make([]float32, dim)
	for i := range item.Vector {
		item.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return item, nil
}
