package cache

import (
	"os"
	"path/filepath"
)

// loadFallbackFile reads the pre-baked payload for key. One file per key,
// named <key>.json, containing content shaped exactly like the producer's
// success value: no envelope, no wrapper.
func loadFallbackFile(dir, key string) ([]byte, bool, error) {
	if dir == "" {
		return nil, false, nil
	}
	path := filepath.Join(dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
