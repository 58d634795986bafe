package localfiles

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store implements the file and reassignment collaborators over a local
// directory tree. It is the single-node backend; remote connectors plug in
// behind the same interfaces outside this core.
//
// Layout:
//
//	<root>/tenants/<tenant>/files/<path>       shared tenant files
//	<root>/tenants/<tenant>/users/<user>/<obj> per-user owned objects
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) filePath(tenantID, path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("empty path")
	}
	return filepath.Join(s.root, "tenants", tenantID, "files", clean), nil
}

func (s *Store) userDir(tenantID, userID string) string {
	return filepath.Join(s.root, "tenants", tenantID, "users", userID)
}

func (s *Store) Move(ctx context.Context, tenantID, path, destination string) error {
	src, err := s.filePath(tenantID, path)
	if err != nil {
		return err
	}
	dst, err := s.filePath(tenantID, filepath.Join(destination, filepath.Base(path)))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (s *Store) Copy(ctx context.Context, tenantID, path, destination string) error {
	src, err := s.filePath(tenantID, path)
	if err != nil {
		return err
	}
	dst, err := s.filePath(tenantID, filepath.Join(destination, filepath.Base(path)))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func (s *Store) Delete(ctx context.Context, tenantID, path string) error {
	target, err := s.filePath(tenantID, path)
	if err != nil {
		return err
	}
	return os.RemoveAll(target)
}

func (s *Store) Open(ctx context.Context, tenantID, path string) (io.ReadCloser, error) {
	target, err := s.filePath(tenantID, path)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// ListOwnedObjects returns the relative paths of everything under the
// user's object directory.
func (s *Store) ListOwnedObjects(ctx context.Context, tenantID, userID string) ([]string, error) {
	dir := s.userDir(tenantID, userID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var objects []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(p, dir)
		objects = append(objects, strings.TrimPrefix(rel, string(filepath.Separator)))
		return nil
	})
	return objects, err
}

// Reassign moves one owned object from one user's directory to another's.
func (s *Store) Reassign(ctx context.Context, tenantID, objectID, fromUserID, toUserID string) error {
	src := filepath.Join(s.userDir(tenantID, fromUserID), objectID)
	dst := filepath.Join(s.userDir(tenantID, toUserID), objectID)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}
