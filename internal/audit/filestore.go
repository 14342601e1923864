package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/acuvox/acuvox/internal/confirm"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore persists validation records as JSON lines in a local file.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that writes to the given path.
// The file is created if it does not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SaveRecord appends the record to the file as one JSON line.
func (fs *FileStore) SaveRecord(ctx context.Context, sessionID string, rec confirm.ValidationRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("audit: save record: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Record:    rec,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}
