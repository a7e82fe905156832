package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"voxelstream.ai/internal/sim/world"
)

// ListTickFiles returns the tick log files under dataDir, oldest first.
func ListTickFiles(dataDir string) ([]string, error) {
	return listFiles(filepath.Join(dataDir, TickDir), TickPrefix)
}

func ListChunkFiles(dataDir string) ([]string, error) {
	return listFiles(filepath.Join(dataDir, ChunkDir), ChunkPrefix)
}

func listFiles(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	// The hour stamp sorts lexically.
	sort.Strings(paths)
	return paths, nil
}

// ReadJSONL decodes every line of a zstd JSONL file into a fresh T and hands
// it to fn. Iteration stops at the first error fn returns.
func ReadJSONL[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}

func ReadTicks(path string, fn func(world.TickLogEntry) error) error {
	return ReadJSONL(path, fn)
}

func ReadChunks(path string, fn func(ChunkEntry) error) error {
	return ReadJSONL(path, fn)
}
