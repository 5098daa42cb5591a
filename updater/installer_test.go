package updater

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	archive := filepath.Join(t.TempDir(), "update.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return archive
}

func TestArchiveInstaller_Install(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "old.jar"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), []byte("v1"), 0o755))

	archive := writeZip(t, map[string]string{
		"app.bin":     "v2",
		"lib/new.jar": "new",
	})

	require.NoError(t, NewArchiveInstaller(dir, nil).Install(archive, true))

	for file, want := range map[string]string{
		"app.bin":     "v2",
		"lib/old.jar": "old",
		"lib/new.jar": "new",
	} {
		got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), file)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(dir), ".stage-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	assert.NoDirExists(t, dir+".old")
}

func TestArchiveInstaller_InstallIntoMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "app")
	archive := writeZip(t, map[string]string{"app.bin": "v1"})

	require.NoError(t, NewArchiveInstaller(dir, nil).Install(archive, false))
	assert.FileExists(t, filepath.Join(dir, "app.bin"))
}

func TestArchiveInstaller_ConflictLeavesInstallationUntouched(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.bin"), []byte("v1"), 0o644))
	archive := writeZip(t, map[string]string{"app.bin": "v2", "extra.txt": "x"})

	err := NewArchiveInstaller(dir, nil).Install(archive, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInstallConflict)

	got, err := os.ReadFile(filepath.Join(dir, "app.bin"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	assert.NoFileExists(t, filepath.Join(dir, "extra.txt"))
}

func TestArchiveInstaller_RejectsUnsafeEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	archive := writeZip(t, map[string]string{"../escape.txt": "x"})

	err := NewArchiveInstaller(dir, nil).Install(archive, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInstallFailed)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.txt"))
}

func TestArchiveInstaller_MissingArchive(t *testing.T) {
	err := NewArchiveInstaller(t.TempDir(), nil).Install(filepath.Join(t.TempDir(), "none.zip"), true)
	assert.ErrorIs(t, err, ErrInstallFailed)
}

func TestPackArchive(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "conf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "conf", "a.yaml"), []byte("a: 1"), 0o644))
	archive := filepath.Join(t.TempDir(), "out", "update.zip")

	require.NoError(t, PackArchive(archive, src, []string{"conf/a.yaml"}))

	zr, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "conf/a.yaml", zr.File[0].Name)

	err = PackArchive(archive, src, []string{"missing"})
	assert.ErrorIs(t, err, ErrArchiveFailed)
}
