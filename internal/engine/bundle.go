package engine

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// bundlePackage compresses the export directory into a single dated archive
// file inside it, then removes every loose file so the directory contains
// exactly the bundle. When the engine has an age recipient configured the
// bundle is encrypted to it.
func (e *Engine) bundlePackage(dir string) (string, error) {
	name := "photark-export-" + e.clock.Now().UTC().Format("20060102-150405") + ".tar.gz"
	if e.bundleRecipient != "" {
		name += ".age"
	}
	bundlePath := filepath.Join(dir, name)

	f, err := os.Create(bundlePath)
	if err != nil {
		return "", fmt.Errorf("creating bundle: %w", err)
	}

	var sink io.WriteCloser = f
	var encWriter io.WriteCloser
	if e.bundleRecipient != "" {
		recipient, err := age.ParseX25519Recipient(e.bundleRecipient)
		if err != nil {
			f.Close()
			os.Remove(bundlePath)
			return "", fmt.Errorf("parsing bundle recipient: %w", err)
		}
		encWriter, err = age.Encrypt(f, recipient)
		if err != nil {
			f.Close()
			os.Remove(bundlePath)
			return "", fmt.Errorf("starting bundle encryption: %w", err)
		}
		sink = encWriter
	}

	if err := writeTarGz(sink, dir, name); err != nil {
		if encWriter != nil {
			encWriter.Close()
		}
		f.Close()
		os.Remove(bundlePath)
		return "", err
	}

	if encWriter != nil {
		if err := encWriter.Close(); err != nil {
			f.Close()
			os.Remove(bundlePath)
			return "", fmt.Errorf("finishing bundle encryption: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(bundlePath)
		return "", fmt.Errorf("closing bundle: %w", err)
	}

	// The package is now fully inside the bundle; drop the loose files.
	if err := removeExcept(dir, name); err != nil {
		return "", fmt.Errorf("cleaning bundled directory: %w", err)
	}
	return bundlePath, nil
}

// writeTarGz tars and gzips everything under dir into w, skipping the bundle
// file itself.
func writeTarGz(w io.Writer, dir, skipName string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == skipName {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		src, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		src.Close()
		return err
	})
	if err != nil {
		return fmt.Errorf("archiving package: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finishing gzip stream: %w", err)
	}
	return nil
}

// removeExcept deletes every entry in dir except the named file.
func removeExcept(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
