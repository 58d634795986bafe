package localfiles

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStore_MoveCopyDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	ctx := context.Background()

	src := filepath.Join(root, "tenants", "t1", "files", "docs", "a.txt")
	writeFile(t, src, "hello")

	require.NoError(t, store.Copy(ctx, "t1", "/docs/a.txt", "/backup"))
	copied, err := os.ReadFile(filepath.Join(root, "tenants", "t1", "files", "backup", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(copied))

	require.NoError(t, store.Move(ctx, "t1", "/docs/a.txt", "/archive"))
	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(root, "tenants", "t1", "files", "archive", "a.txt"))

	require.NoError(t, store.Delete(ctx, "t1", "/archive/a.txt"))
	assert.NoFileExists(t, filepath.Join(root, "tenants", "t1", "files", "archive", "a.txt"))
}

func TestStore_OpenStreamsContent(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	writeFile(t, filepath.Join(root, "tenants", "t1", "files", "a.txt"), "payload")

	rc, err := store.Open(context.Background(), "t1", "/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestStore_PathsAreTenantScoped(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	writeFile(t, filepath.Join(root, "tenants", "t2", "files", "secret.txt"), "secret")

	// Traversal attempts collapse inside the tenant's file root.
	_, err := store.Open(context.Background(), "t1", "../../t2/files/secret.txt")
	assert.Error(t, err)

	err = store.Delete(context.Background(), "t1", "")
	assert.Error(t, err)
}

func TestStore_ReassignMovesOwnedObjects(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "tenants", "t1", "users", "u1", "reports", "q1.pdf"), "r1")
	writeFile(t, filepath.Join(root, "tenants", "t1", "users", "u1", "notes.txt"), "n")

	objects, err := store.ListOwnedObjects(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join("reports", "q1.pdf"), "notes.txt"}, objects)

	for _, obj := range objects {
		require.NoError(t, store.Reassign(ctx, "t1", obj, "u1", "u2"))
	}

	left, err := store.ListOwnedObjects(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, left)

	moved, err := store.ListOwnedObjects(ctx, "t1", "u2")
	require.NoError(t, err)
	assert.ElementsMatch(t, objects, moved)
}

func TestStore_ListOwnedObjectsUnknownUser(t *testing.T) {
	store := NewStore(t.TempDir())

	objects, err := store.ListOwnedObjects(context.Background(), "t1", "ghost")
	require.NoError(t, err)
	assert.Empty(t, objects)
}
