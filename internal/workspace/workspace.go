package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Workspace is the output directory for one CLI run
type Workspace struct {
	Dir       string
	CreatedAt time.Time
	Created   bool // directory did not exist before Open
}

// Open uses dir as the output directory, creating it if missing
func Open(dir string) (*Workspace, error) {
	ws := &Workspace{Dir: dir, CreatedAt: time.Now()}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		ws.Created = true
	case err != nil:
		return nil, fmt.Errorf("stat output dir: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("%s exists but is not a directory", dir)
	}

	return ws, nil
}

// MIDIPath returns <dir>/<input name without extension>.mid
func (w *Workspace) MIDIPath(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(w.Dir, stem+".mid")
}

// WriteFile writes data into the workspace atomically via a temp file
func (w *Workspace) WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(w.Dir, ".notemidi-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}
