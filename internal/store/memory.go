package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// memoryFile is the on-disk shape of the used-number set
type memoryFile struct {
	UsedNumbers []int     `json:"used_numbers"`
	LastUpdated time.Time `json:"last_updated"`
}

// readMemory returns the used numbers recorded at path, or nil if the file is absent
func readMemory(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}

	var mem memoryFile
	if err := json.Unmarshal(data, &mem); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}
	return mem.UsedNumbers, nil
}

func writeMemory(path string, used []int, now time.Time) error {
	data, err := json.MarshalIndent(memoryFile{
		UsedNumbers: sortedUnique(used),
		LastUpdated: now.UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode memory file: %w", err)
	}
	return writeFileAtomic(path, data)
}

func sortedUnique(nums []int) []int {
	out := make([]int, 0, len(nums))
	seen := make(map[int]bool, len(nums))
	for _, n := range nums {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
