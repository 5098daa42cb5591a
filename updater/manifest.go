package updater

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// maxManifestSize bounds how much of a manifest response is read.
const maxManifestSize = 4 << 20

// Manifest describes the published state of an application.
type Manifest struct {
	// Version of the published release; optional.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// BaseURI resolves relative file URIs; optional.
	BaseURI string `json:"baseUri,omitempty" yaml:"baseUri,omitempty"`

	// Required forces the decision when set.
	Required *bool `json:"required,omitempty" yaml:"required,omitempty"`

	Files []FileEntry `json:"files" yaml:"files"`
}

// FileEntry is one file of a release.
type FileEntry struct {
	// Path relative to the install directory, slash separated.
	Path string `json:"path" yaml:"path"`

	// URI to download the file from, absolute or relative to BaseURI.
	URI string `json:"uri,omitempty" yaml:"uri,omitempty"`

	// Size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// ParseManifest reads a JSON or YAML manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestFetch, err)
	}

	var m Manifest
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		err = json.Unmarshal(data, &m)
	} else {
		err = yaml.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestInvalid, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Version != "" {
		if _, err := version.NewVersion(m.Version); err != nil {
			return fmt.Errorf("%w: version %q: %w", ErrManifestInvalid, m.Version, err)
		}
	}
	for _, f := range m.Files {
		if f.Path == "" {
			return fmt.Errorf("%w: file entry without path", ErrManifestInvalid)
		}
		clean := path.Clean(f.Path)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("%w: %s", ErrManifestFilePath, f.Path)
		}
		if f.Size < 0 {
			return fmt.Errorf("%w: negative size for %s", ErrManifestInvalid, f.Path)
		}
	}
	return nil
}

// ResolveURI returns the absolute download location of f. Relative locations
// resolve against BaseURI, or against manifestURL when BaseURI is empty.
func (m *Manifest) ResolveURI(f FileEntry, manifestURL string) (string, error) {
	ref := f.URI
	if ref == "" {
		ref = f.Path
	}
	baseURI := m.BaseURI
	if baseURI == "" {
		baseURI = manifestURL
	}
	base, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("%w: base uri: %w", ErrManifestInvalid, err)
	}
	if m.BaseURI != "" && !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: file uri %q: %w", ErrManifestInvalid, ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}

// Changes returns the entries whose file in installDir is missing or differs
// in size, and whether an update is required.
//
// An explicit Required flag decides on its own. Otherwise a manifest version
// that is not newer than current means no update; a nil current or an empty
// manifest version falls back to comparing the files.
func (m *Manifest) Changes(installDir string, current *version.Version) ([]FileEntry, bool, error) {
	changed, err := m.changedFiles(installDir)
	if err != nil {
		return nil, false, err
	}

	if m.Required != nil {
		if !*m.Required {
			return nil, false, nil
		}
		if len(changed) == 0 {
			changed = append(changed, m.Files...)
		}
		return changed, len(changed) > 0, nil
	}

	if m.Version != "" && current != nil {
		published, err := version.NewVersion(m.Version)
		if err != nil {
			return nil, false, fmt.Errorf("%w: version %q: %w", ErrManifestInvalid, m.Version, err)
		}
		if !published.GreaterThan(current) {
			return nil, false, nil
		}
	}

	return changed, len(changed) > 0, nil
}

func (m *Manifest) changedFiles(installDir string) ([]FileEntry, error) {
	var changed []FileEntry
	for _, f := range m.Files {
		info, err := os.Stat(filepath.Join(installDir, filepath.FromSlash(f.Path)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			changed = append(changed, f)
		case err != nil:
			return nil, fmt.Errorf("failed to inspect %s: %w", f.Path, err)
		case info.IsDir() || info.Size() != f.Size:
			changed = append(changed, f)
		}
	}
	return changed, nil
}

// TotalSize returns the summed size of files.
func TotalSize(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
