package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/observability"
	"git.home.luguber.info/inful/buildtrigger/internal/workspace"
)

// Packager collects build output from workspace into an archive inside outputDir.
type Packager interface {
	Package(ctx context.Context, workspace, outputDir string) (string, error)
}

// ZipPackager zips a fixed build-output subdirectory of the workspace.
type ZipPackager struct {
	outputSubdir string
	archiveName  string
}

// NewZipPackager creates a packager for the given workspace-relative output
// directory and archive file name.
func NewZipPackager(outputSubdir, archiveName string) *ZipPackager {
	return &ZipPackager{outputSubdir: outputSubdir, archiveName: archiveName}
}

// ArchiveName returns the well-known archive file name.
func (p *ZipPackager) ArchiveName() string { return p.archiveName }

// Package zips workspace/outputSubdir into outputDir/archiveName, replacing any
// previous archive. Entries are rooted at the output subdirectory name.
func (p *ZipPackager) Package(ctx context.Context, ws, outputDir string) (string, error) {
	srcDir, err := workspace.Resolve(ws, p.outputSubdir)
	if err != nil {
		return "", &PackageError{Reason: ReasonMissingOutput, Path: p.outputSubdir, Err: err}
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", &PackageError{Reason: ReasonMissingOutput, Path: srcDir, Err: err}
	}
	if !info.IsDir() {
		return "", &PackageError{Reason: ReasonMissingOutput, Path: srcDir, Err: fmt.Errorf("%s is not a directory", srcDir)}
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", &PackageError{Reason: ReasonWrite, Path: outputDir, Err: err}
	}
	target := filepath.Join(outputDir, p.archiveName)

	tmp, err := os.CreateTemp(outputDir, "."+p.archiveName+"-*.tmp")
	if err != nil {
		return "", &PackageError{Reason: ReasonWrite, Path: outputDir, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	start := time.Now()
	files, err := writeArchive(ctx, tmp, srcDir, filepath.Base(srcDir))
	if err != nil {
		var pe *PackageError
		if errors.As(err, &pe) {
			return "", pe
		}
		return "", &PackageError{Reason: ReasonWrite, Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &PackageError{Reason: ReasonWrite, Path: target, Err: err}
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", &PackageError{Reason: ReasonWrite, Path: target, Err: err}
	}
	committed = true

	observability.InfoContext(ctx, "Artifact packaged", logfields.Path(target), slog.Int("files", files), logfields.Duration(time.Since(start)))
	return target, nil
}

// writeArchive walks srcDir and writes every directory and regular file under root/.
func writeArchive(ctx context.Context, w io.Writer, srcDir, root string) (int, error) {
	zw := zip.NewWriter(w)
	files := 0

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &PackageError{Reason: ReasonRead, Path: path, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(root, rel))

		info, err := d.Info()
		if err != nil {
			return &PackageError{Reason: ReasonRead, Path: path, Err: err}
		}
		switch {
		case d.IsDir():
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			_, err = zw.CreateHeader(hdr)
			return err
		case info.Mode().IsRegular():
			files++
			return addFile(zw, path, name, info)
		default:
			observability.DebugContext(ctx, "Skipping non-regular file in build output", logfields.Path(path))
			return nil
		}
	})
	if walkErr != nil {
		_ = zw.Close()
		return files, walkErr
	}
	return files, zw.Close()
}

func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return &PackageError{Reason: ReasonRead, Path: path, Err: err}
	}
	defer func() { _ = src.Close() }()

	_, err = io.Copy(dst, src)
	return err
}
