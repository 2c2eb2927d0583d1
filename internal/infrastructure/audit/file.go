package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecofridge/server/internal/ports/outbound"
)

// FileSink writes one file per entry under a root directory
type FileSink struct {
	root string
}

// NewFileSink creates the root directory when missing
func NewFileSink(root string) (*FileSink, error) {
	if root == "" {
		root = "logs"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileSink{root: root}, nil
}

// Record writes the entry text followed by a newline. Existing files are
// never overwritten. The write completes even when ctx is already done.
func (s *FileSink) Record(_ context.Context, entry outbound.AuditEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}

	name := filepath.Join(s.root, filepath.FromSlash(objectName(entry)))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create audit partition: %w", err)
	}

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	if _, err := f.WriteString(entry.Text + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write audit file: %w", err)
	}
	return f.Close()
}
