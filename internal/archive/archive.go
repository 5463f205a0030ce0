// Package archive writes deployment artifacts and finds them again on disk.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/shipctl/shipctl/internal/logging"
)

const (
	// Prefix starts every artifact file name.
	Prefix = "deployment-"
	// Extension ends every artifact file name.
	Extension = ".tar.gz"

	// Epoch milliseconds stay 13 digits wide until the year 2286, so
	// lexical order of names equals creation order.
	timestampWidth = 13
)

// Artifact is a packaged deployment archive.
type Artifact struct {
	Name      string
	Path      string
	CreatedAt time.Time
	Size      int64
}

// FileName returns the artifact file name for t.
func FileName(t time.Time) string {
	return fmt.Sprintf("%s%0*d%s", Prefix, timestampWidth, t.UnixMilli(), Extension)
}

// ParseFileName extracts the creation time from an artifact file name.
func ParseFileName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, Extension) {
		return time.Time{}, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, Prefix), Extension)
	if len(digits) != timestampWidth {
		return time.Time{}, false
	}
	var ms int64
	for _, r := range digits {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		ms = ms*10 + int64(r-'0')
	}
	return time.UnixMilli(ms), true
}

// Remover deletes a staging directory once it has been packaged.
type Remover interface {
	Cleanup(path string) error
}

// Packager turns staging directories into artifacts in OutDir.
type Packager struct {
	outDir  string
	remover Remover
	logger  *slog.Logger
	now     func() time.Time
}

// NewPackager constructs a Packager writing into outDir.
func NewPackager(outDir string, remover Remover, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Packager{outDir: outDir, remover: remover, logger: logger, now: time.Now}
}

// OutDir returns the artifact directory.
func (p *Packager) OutDir() string {
	return p.outDir
}

// Package archives the contents of stagingPath, without a wrapping
// directory, into a new artifact. The staging directory is removed
// whether or not packaging succeeds.
func (p *Packager) Package(stagingPath string) (art *Artifact, err error) {
	defer func() {
		if p.remover == nil {
			return
		}
		if cerr := p.remover.Cleanup(stagingPath); cerr != nil {
			p.logger.Warn("staging cleanup failed", "dir", stagingPath, "error", cerr)
			if err == nil {
				// a failed run leaves no artifact behind
				if art != nil {
					_ = os.Remove(art.Path)
				}
				art, err = nil, fmt.Errorf("remove staging dir: %w", cerr)
			}
		}
	}()

	info, err := os.Stat(stagingPath)
	if err != nil {
		return nil, fmt.Errorf("staging dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("staging path %s is not a directory", stagingPath)
	}
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	created, dst := p.reserveName()
	if err := writeTarGz(dst, stagingPath); err != nil {
		return nil, err
	}
	st, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}
	p.logger.Info("artifact written", "path", dst, "bytes", st.Size())
	return &Artifact{Name: filepath.Base(dst), Path: dst, CreatedAt: created, Size: st.Size()}, nil
}

// reserveName picks a timestamp whose file name is not taken yet.
func (p *Packager) reserveName() (time.Time, string) {
	t := p.now().Truncate(time.Millisecond)
	for {
		dst := filepath.Join(p.outDir, FileName(t))
		if _, err := os.Lstat(dst); errors.Is(err, os.ErrNotExist) {
			return t, dst
		}
		t = t.Add(time.Millisecond)
	}
}

func writeTarGz(dstPath, srcDir string) error {
	tmp := dstPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	ok := false
	defer func() {
		_ = f.Close()
		if !ok {
			_ = os.Remove(tmp)
		}
	}()

	gw := gzip.NewWriter(f)
	gw.Name = filepath.Base(dstPath)
	tw := tar.NewWriter(gw)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addEntry(tw, path, filepath.ToSlash(rel), d)
	})
	if walkErr != nil {
		return fmt.Errorf("write artifact: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		return err
	}
	ok = true
	return nil
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	} else if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(tw, src)
	_ = src.Close()
	return copyErr
}

// Entries lists the entry names stored in the artifact at path.
func Entries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	defer func() { _ = gr.Close() }()

	var names []string
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}
		names = append(names, hdr.Name)
	}
}
