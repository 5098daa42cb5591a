package updater

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/zip"

	"github.com/GoCodeAlone/launcher/logging"
)

// Installer applies a downloaded update archive.
type Installer interface {
	// Install unpacks archivePath over the installation. With overwrite false
	// an entry that collides with an existing file fails the install.
	Install(archivePath string, overwrite bool) error
}

// ArchiveInstaller installs zip archives into a directory. The current
// directory is copied to a sibling staging directory, the archive is unpacked
// over the copy and the two are swapped by rename, so readers never observe a
// half-installed tree.
type ArchiveInstaller struct {
	dir    string
	logger logging.Logger
}

// NewArchiveInstaller creates an installer for dir.
func NewArchiveInstaller(dir string, logger logging.Logger) *ArchiveInstaller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ArchiveInstaller{dir: dir, logger: logger}
}

// Dir returns the installation directory.
func (i *ArchiveInstaller) Dir() string {
	return i.dir
}

// Install implements Installer.
func (i *ArchiveInstaller) Install(archivePath string, overwrite bool) error {
	target, err := filepath.Abs(i.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: create install parent: %w", ErrInstallFailed, err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open archive: %w", ErrInstallFailed, err)
	}
	defer zr.Close()

	staging, err := os.MkdirTemp(parent, ".stage-*")
	if err != nil {
		return fmt.Errorf("%w: create staging dir: %w", ErrInstallFailed, err)
	}

	i.logger.Info("Installing update", "archive", archivePath, "target", target)

	if err := copyTree(target, staging); err != nil {
		return cleanup(fmt.Errorf("%w: copy current installation: %w", ErrInstallFailed, err), staging)
	}
	for _, f := range zr.File {
		if err := extractEntry(f, staging, overwrite); err != nil {
			return cleanup(err, staging)
		}
	}
	if err := swap(target, staging); err != nil {
		return cleanup(err, staging)
	}

	i.logger.Info("Update installed", "target", target, "entries", len(zr.File))
	return nil
}

func extractEntry(f *zip.File, root string, overwrite bool) error {
	rel, err := archiveEntryPath(f.Name)
	if err != nil {
		return err
	}
	dest := filepath.Join(root, rel)

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInstallFailed, f.Name, err)
		}
		return nil
	}

	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			return fmt.Errorf("%w: %s", ErrInstallConflict, f.Name)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstallFailed, f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstallFailed, f.Name, err)
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	if err := writeFile(dest, src, mode); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstallFailed, f.Name, err)
	}
	return nil
}

// swap replaces target with staging. On failure target is restored.
func swap(target, staging string) error {
	backup := ""
	if _, err := os.Stat(target); err == nil {
		backup = target + ".old"
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("%w: clear backup: %w", ErrInstallFailed, err)
		}
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("%w: move current installation: %w", ErrInstallFailed, err)
		}
	}

	if err := os.Rename(staging, target); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, fmt.Errorf("%w: activate staged installation: %w", ErrInstallFailed, err))
		if backup != "" {
			if rerr := os.Rename(backup, target); rerr != nil {
				result = multierror.Append(result, fmt.Errorf("restore previous installation: %w", rerr))
			}
		}
		return result.ErrorOrNil()
	}

	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// cleanup removes the staging directory and reports removal failures
// together with cause.
func cleanup(cause error, staging string) error {
	if err := os.RemoveAll(staging); err != nil {
		return multierror.Append(cause, fmt.Errorf("remove staging dir: %w", err))
	}
	return cause
}

// copyTree copies src into dst, which must exist. A missing src is an empty
// installation.
func copyTree(src, dst string) error {
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil || rel == "." {
			return err
		}
		dest := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(dest, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(link, dest)
		case info.Mode().IsRegular():
			in, err := os.Open(p)
			if err != nil {
				return err
			}
			defer in.Close()
			return writeFile(dest, in, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func writeFile(dest string, r io.Reader, mode fs.FileMode) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var _ Installer = (*ArchiveInstaller)(nil)
