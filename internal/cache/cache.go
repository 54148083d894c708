package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dygy/notemidi/internal/notes"
)

// formatVersion is mixed into every key; bump it when encoder output changes
const formatVersion = "smf-1"

// OutputCache stores encoded MIDI keyed by note content and options
type OutputCache struct {
	dir string
}

// Entry is a cached conversion
type Entry struct {
	Key           string    `json:"key"`
	Source        string    `json:"source,omitempty"`
	Notes         int       `json:"notes"`
	NotesRemoved  int       `json:"notes_removed"`
	NotesMerged   int       `json:"notes_merged"`
	BendConflicts int       `json:"bend_conflicts"`
	CreatedAt     time.Time `json:"created_at"`

	MIDI []byte `json:"-"`
}

// New opens a cache rooted at dir, or at the user cache directory when dir is empty
func New(dir string) (*OutputCache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locate cache dir: %w", err)
		}
		dir = filepath.Join(base, "notemidi")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &OutputCache{dir: dir}, nil
}

// Dir returns the cache root
func (c *OutputCache) Dir() string {
	return c.dir
}

// Key hashes the notes and the options that produced them
func Key(list []notes.Note, options any) (string, error) {
	hasher := sha256.New()
	hasher.Write([]byte(formatVersion))

	enc := json.NewEncoder(hasher)
	if err := enc.Encode(list); err != nil {
		return "", fmt.Errorf("hash notes: %w", err)
	}
	if err := enc.Encode(options); err != nil {
		return "", fmt.Errorf("hash options: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil))[:16], nil
}

// Get retrieves a cached conversion
func (c *OutputCache) Get(key string) (*Entry, bool) {
	sub := filepath.Join(c.dir, key)

	meta, err := os.ReadFile(filepath.Join(sub, "entry.json"))
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(meta, &entry); err != nil || entry.Key != key {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(sub, "output.mid"))
	if err != nil || !strings.HasPrefix(string(data), "MThd") {
		return nil, false
	}
	entry.MIDI = data
	return &entry, true
}

// Put stores a conversion under entry.Key
func (c *OutputCache) Put(entry *Entry) error {
	sub := filepath.Join(c.dir, entry.Key)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return fmt.Errorf("create cache subdir: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := os.WriteFile(filepath.Join(sub, "output.mid"), entry.MIDI, 0644); err != nil {
		return fmt.Errorf("write cached midi: %w", err)
	}

	// entry.json last, so a partial write is never seen as a hit
	meta, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "entry.json"), meta, 0644); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Clear removes all cached outputs
func (c *OutputCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Size returns the total bytes and number of cached entries
func (c *OutputCache) Size() (int64, int, error) {
	var totalSize int64
	var count int

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++

		files, _ := os.ReadDir(filepath.Join(c.dir, entry.Name()))
		for _, f := range files {
			info, err := f.Info()
			if err == nil {
				totalSize += info.Size()
			}
		}
	}

	return totalSize, count, nil
}
