package updater

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// PackArchive writes the given slash-separated paths, read from srcDir, into a
// zip archive at archivePath. The archive is written next to its destination
// and renamed into place once complete.
func PackArchive(archivePath, srcDir string, paths []string) (err error) {
	if dir := filepath.Dir(archivePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".archive-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, p := range paths {
		if err := addToArchive(zw, srcDir, p); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: %s: %w", ErrArchiveFailed, p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		return fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}
	return nil
}

func addToArchive(zw *zip.Writer, srcDir, name string) error {
	src, err := os.Open(filepath.Join(srcDir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// archiveEntryPath returns the cleaned relative path of a zip entry, or an
// error when the entry would land outside the extraction root.
func archiveEntryPath(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: unsafe archive entry %q", ErrInstallFailed, name)
	}
	return filepath.FromSlash(clean), nil
}
