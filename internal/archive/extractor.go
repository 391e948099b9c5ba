// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package archive unpacks downloaded release archives. Zip is the primary
// format; goreleaser-style .tar.gz and .tar.xz assets are handled too.
package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"

	"github.com/autobrr/fetcharr/internal/domain"
	"github.com/autobrr/fetcharr/pkg/pathutil"
)

// Options selects the destination policy for one extraction.
type Options struct {
	// CreateSubfolder extracts into a fresh subdirectory named after the
	// archive (extension stripped) instead of directly into the destination.
	CreateSubfolder bool

	// DeleteArchiveAfter removes the source archive once extraction
	// succeeded. A deletion failure is logged and does not roll anything back.
	DeleteArchiveAfter bool
}

// Extractor unpacks archives to a destination directory.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor returns an Extractor.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{
		log: log.With().Str("component", "archive").Logger(),
	}
}

// Extract unpacks archivePath under destDir and returns the directory the
// entries were written to. Error kinds: domain.ErrBadArchive when the file is
// not a valid archive, domain.ErrIO for filesystem failures.
func (e *Extractor) Extract(archivePath, destDir string, opts Options) (string, error) {
	target := destDir
	if opts.CreateSubfolder {
		target = filepath.Join(destDir, pathutil.ArchiveBaseName(archivePath))
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", errors.Wrapf(domain.ErrIO, "create destination %s: %v", target, err)
	}

	var err error
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		err = e.extractZip(archivePath, target)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		err = e.extractTar(archivePath, target, compressionGzip)
	case strings.HasSuffix(lower, ".tar.xz"):
		err = e.extractTar(archivePath, target, compressionXz)
	default:
		err = errors.Wrapf(domain.ErrBadArchive, "unsupported archive %s", filepath.Base(archivePath))
	}
	if err != nil {
		return "", err
	}

	if opts.DeleteArchiveAfter {
		if removeErr := os.Remove(archivePath); removeErr != nil {
			e.log.Warn().Err(removeErr).Str("archive", archivePath).Msg("could not delete archive after extraction")
		}
	}

	return target, nil
}

func (e *Extractor) extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrapf(domain.ErrBadArchive, "open %s: %v", archivePath, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := e.writeZipEntry(file, destDir); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) writeZipEntry(file *zip.File, destDir string) error {
	target, err := securePath(destDir, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errors.Wrapf(domain.ErrIO, "create directory: %v", err)
		}
		return nil
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrapf(domain.ErrBadArchive, "open entry %s: %v", file.Name, err)
	}
	defer src.Close()

	return writeEntry(target, src, file.Mode())
}

type compression int

const (
	compressionGzip compression = iota
	compressionXz
)

func (e *Extractor) extractTar(archivePath, destDir string, comp compression) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrapf(domain.ErrIO, "open %s: %v", archivePath, err)
	}
	defer f.Close()

	var decompressed io.Reader
	switch comp {
	case compressionGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(domain.ErrBadArchive, "gzip %s: %v", archivePath, err)
		}
		defer gz.Close()
		decompressed = gz
	case compressionXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return errors.Wrapf(domain.ErrBadArchive, "xz %s: %v", archivePath, err)
		}
		decompressed = xzr
	}

	tr := tar.NewReader(decompressed)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(domain.ErrBadArchive, "read tar: %v", err)
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(domain.ErrIO, "create directory: %v", err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		default:
			// Symlinks and special files inside release archives are skipped.
			e.log.Debug().Str("entry", hdr.Name).Msg("skipping non-regular archive entry")
		}
	}
}

// securePath joins name under destDir and rejects entries that escape it.
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", errors.Wrapf(domain.ErrBadArchive, "entry %s escapes destination", name)
	}
	return target, nil
}

func writeEntry(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(domain.ErrIO, "create parent directory: %v", err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(domain.ErrIO, "create %s: %v", target, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return errors.Wrapf(domain.ErrIO, "write %s: %v", target, err)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(domain.ErrIO, "close %s: %v", target, err)
	}
	return nil
}
