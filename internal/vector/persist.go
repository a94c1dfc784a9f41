package vector

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

const fileMagic = "KTV1"

// Save writes the index to path, creating the directory if needed. Format: magic (4),
// fingerprint and embedder id as length-prefixed strings, dimension (4), n (4), then per
// vector: idLen (4), id bytes, vector (dimension*4 bytes). All integers little-endian.
func (x *Index) Save(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := x.write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	return nil
}

func (x *Index) write(w io.Writer) error {
	if _, err := io.WriteString(w, fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := writeString(w, x.fingerprint); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}
	if err := writeString(w, x.embedderID); err != nil {
		return fmt.Errorf("write embedder id: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(x.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(x.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range x.ids {
		if err := writeString(w, id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(x.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// ErrNoIndexFile is returned by Load when path does not exist.
var ErrNoIndexFile = errors.New("index file does not exist")

// Load reads an index written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoIndexFile
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return nil, fmt.Errorf("not an index file: %s", path)
	}
	fingerprint, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read fingerprint: %w", err)
	}
	embedderID, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read embedder id: %w", err)
	}
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		ids = append(ids, id)
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return Build(fingerprint, embedderID, int(dim), ids, vectors)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > 1<<20 {
		return "", fmt.Errorf("string length %d too large", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
