package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Process-wide user preferences, the equivalent of the host application's
// add-on preferences panel. Stored as a flat JSON document in the data path.

type prefs struct {
	data map[string]any
}

var (
	loaded    prefs
	prefmutex sync.Mutex
	prefpath  = "preferences.json"
)

var defaults = map[string]any{
	"sceneScale":       1.0,
	"frameRate":        24,
	"validateOnExport": true,
	"deferredLimit":    1024,
}

func init() {
	Load()
}

// SetPath points the preference store at a new location and reloads it.
func SetPath(datapath string) error {
	prefmutex.Lock()
	prefpath = filepath.Join(datapath, "preferences.json")
	prefmutex.Unlock()
	return Load()
}

func Load() error {
	prefmutex.Lock()
	defer prefmutex.Unlock()
	loaded.data = make(map[string]any)
	for key, val := range defaults {
		loaded.data[key] = val
	}

	rawprefs, err := os.ReadFile(prefpath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(rawprefs, &loaded.data)
}

func Save() error {
	prefmutex.Lock()
	defer prefmutex.Unlock()
	rawprefs, err := json.Marshal(loaded.data)
	if err != nil {
		return err
	}
	return os.WriteFile(prefpath, rawprefs, 0600)
}

func Set(key string, val any) {
	prefmutex.Lock()
	defer prefmutex.Unlock()
	loaded.data[key] = val
}

func Get(key string) any {
	prefmutex.Lock()
	defer prefmutex.Unlock()
	return loaded.data[key]
}

func All() map[string]any {
	return loaded.data
}
