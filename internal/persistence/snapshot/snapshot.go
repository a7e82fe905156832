package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Version is bumped whenever ChunkV1 changes shape.
const Version = 1

type Header struct {
	Version     int    `json:"version"`
	CX          int    `json:"cx"`
	CZ          int    `json:"cz"`
	Fingerprint string `json:"fingerprint"`
}

// ChunkV1 is one chunk's voxel grid as persisted on disk.
type ChunkV1 struct {
	Header Header `json:"header"`

	CX          int    `json:"cx"`
	CZ          int    `json:"cz"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Depth       int    `json:"depth"`
	Fingerprint string `json:"fingerprint"`

	// Runs is the RLE payload of the flat grid (varint id/run pairs).
	Runs []byte `json:"runs"`
}

// ChunkPath returns the canonical file name for a chunk record under dir.
func ChunkPath(dir string, cx, cz int) string {
	return filepath.Join(dir, fmt.Sprintf("c.%d.%d.chunk.zst", cx, cz))
}

// WriteChunk writes rec atomically (temp file + rename) so a concurrent reader
// never sees a half-written record.
func WriteChunk(path string, rec ChunkV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	rec.Header = Header{
		Version:     Version,
		CX:          rec.CX,
		CZ:          rec.CZ,
		Fingerprint: rec.Fingerprint,
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		cleanup()
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(rec.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		cleanup()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		cleanup()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&rec); err != nil {
		_ = enc.Close()
		cleanup()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		cleanup()
		return err
	}
	if err := enc.Close(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func ReadChunk(path string) (ChunkV1, error) {
	var rec ChunkV1
	f, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return rec, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return rec, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return rec, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return rec, fmt.Errorf("unsupported chunk record version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&rec); err != nil {
		return rec, fmt.Errorf("gob decode: %w", err)
	}
	if rec.CX != h.CX || rec.CZ != h.CZ {
		return rec, fmt.Errorf("header/body coordinate mismatch: header=(%d,%d) body=(%d,%d)", h.CX, h.CZ, rec.CX, rec.CZ)
	}
	return rec, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ListChunks returns every chunk record path under dir.
func ListChunks(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "c.*.*.chunk.zst"))
}
