package vector

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var magic = [4]byte{'T', 'V', 'X', '1'}

// ErrCorrupt is returned when serialized index bytes cannot be decoded.
var ErrCorrupt = errors.New("corrupt vector index")

// MarshalBinary encodes the index. Format: magic (4), dimension (4), n (4),
// then n*dimension little-endian float32 values in position order.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the encoded index to w.
func (f *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	header := make([]byte, 12)
	copy(header, magic[:])
	binary.LittleEndian.PutUint32(header[4:], uint32(f.dimensions))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(f.data)/f.dimensions))
	n, err := w.Write(header)
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("write header: %w", err)
	}
	chunk := make([]byte, 4*f.dimensions)
	for off := 0; off < len(f.data); off += f.dimensions {
		for i, v := range f.data[off : off+f.dimensions] {
			binary.LittleEndian.PutUint32(chunk[i*4:], math.Float32bits(v))
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write vector: %w", err)
		}
	}
	return written, nil
}

// Decode parses bytes produced by MarshalBinary into a new index.
func Decode(data []byte) (*FlatIndex, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	dim := int(binary.LittleEndian.Uint32(data[4:]))
	n := int(binary.LittleEndian.Uint32(data[8:]))
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrCorrupt, dim)
	}
	body := data[12:]
	// Divide rather than multiply so a forged header cannot overflow.
	stride := 4 * uint64(dim)
	if size := uint64(len(body)); size%stride != 0 || size/stride != uint64(n) {
		return nil, fmt.Errorf("%w: %d bytes of vectors do not hold %d vectors of dimension %d", ErrCorrupt, len(body), n, dim)
	}
	values := make([]float32, n*dim)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return &FlatIndex{dimensions: dim, data: values}, nil
}

// Save writes the index to path atomically. The directory is created if needed.
func (f *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load reads an index saved with Save. It returns an error wrapping os.ErrNotExist
// when the file is absent.
func Load(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return Decode(data)
}
