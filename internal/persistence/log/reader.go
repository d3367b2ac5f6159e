package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"factorysim.ai/internal/sim/world"
)

// TickFiles lists the tick journal files of a run directory in chronological order.
func TickFiles(runDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(runDir, ticksDir, ticksPrefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadTicks calls fn for every entry of the run's tick journal, oldest first. It stops at the first
// error fn returns.
func ReadTicks(runDir string, fn func(world.TickLogEntry) error) error {
	files, err := TickFiles(runDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no tick journal under %s", filepath.Join(runDir, ticksDir))
	}
	for _, path := range files {
		if err := readFile(path, fn); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func readFile(path string, fn func(world.TickLogEntry) error) error {
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
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		var e world.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
