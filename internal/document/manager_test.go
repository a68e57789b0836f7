package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsPure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inputs")
	m := New(Params{InputRoot: root}, "acme")

	assert.Equal(t, "acme", m.Workspace())
	// Construction must not touch the filesystem.
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestInputDirIsPerWorkspace(t *testing.T) {
	root := t.TempDir()
	acme := New(Params{InputRoot: root}, "acme")
	globex := New(Params{InputRoot: root}, "globex")

	acmeDir, err := acme.InputDir()
	require.NoError(t, err)
	globexDir, err := globex.InputDir()
	require.NoError(t, err)

	assert.NotEqual(t, acmeDir, globexDir)
	assert.DirExists(t, acmeDir)
	assert.DirExists(t, globexDir)
}

func TestSupported(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir()}, "acme")

	assert.True(t, m.Supported("notes.txt"))
	assert.True(t, m.Supported("REPORT.MD"))
	assert.True(t, m.Supported("deck.pptx"))
	assert.False(t, m.Supported("binary.exe"))
	assert.False(t, m.Supported("noextension"))
}

func TestSupportedCustomExtensions(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir(), Extensions: []string{".rst"}}, "acme")

	assert.True(t, m.Supported("doc.rst"))
	assert.False(t, m.Supported("doc.txt"))
}

func TestStoreScanRead(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir()}, "acme")

	require.NoError(t, m.Store("a.txt", []byte("alpha")))
	require.NoError(t, m.Store("b.md", []byte("beta")))
	// Unsupported files are stored but not scanned.
	require.NoError(t, m.Store("c.bin", []byte{0x1}))

	files, err := m.Scan()
	require.NoError(t, err)
	require.Len(t, files, 2)

	content, err := m.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(content))

	assert.True(t, m.Exists("a.txt"))
	assert.False(t, m.Exists("missing.txt"))
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir()}, "acme")
	assert.Error(t, m.Store("../escape.txt", []byte("nope")))
	assert.Error(t, m.Store("sub/dir.txt", []byte("nope")))
	assert.Error(t, m.Store("", []byte("nope")))
}

func TestNameGuardsCoverAllEntryPoints(t *testing.T) {
	root := t.TempDir()

	// A file in a sibling workspace must be unreachable by name traversal.
	other := New(Params{InputRoot: root}, "other-ws")
	require.NoError(t, other.Store("secret.txt", []byte("theirs")))

	m := New(Params{InputRoot: root}, "acme")
	escape := filepath.Join("..", "other-ws", "secret.txt")

	_, err := m.Read(escape)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.False(t, m.Exists(escape))
	assert.Error(t, m.MarkProcessed(escape))

	// The sibling's file is untouched.
	content, err := other.Read("secret.txt")
	require.NoError(t, err)
	assert.Equal(t, "theirs", string(content))
}

func TestReadMissingIsNotFound(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir()}, "acme")
	_, err := m.Read("ghost.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkProcessed(t *testing.T) {
	m := New(Params{InputRoot: t.TempDir()}, "acme")

	require.NoError(t, m.Store("a.txt", []byte("alpha")))
	require.NoError(t, m.MarkProcessed("a.txt"))

	// Processed files leave the scan set but stay on disk.
	files, err := m.Scan()
	require.NoError(t, err)
	assert.Empty(t, files)

	dir, err := m.InputDir()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, processedDir, "a.txt"))

	assert.ErrorIs(t, m.MarkProcessed("a.txt"), ErrNotFound)
}
