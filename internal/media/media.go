package media

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store writes chat attachments under a local media directory. Files keep
// their original extension but get a fresh name, so uploads can never
// collide or overwrite each other.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chat_images"), 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root media directory for static serving.
func (s *Store) Dir() string {
	return s.dir
}

// SaveChatImage stores the upload and returns its path relative to the media
// root. No size or content validation happens here.
func (s *Store) SaveChatImage(originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + filepath.Ext(originalName)
	rel := filepath.Join("chat_images", name)

	f, err := os.Create(filepath.Join(s.dir, rel))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return rel, nil
}
