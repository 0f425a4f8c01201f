// Package pack bundles a generated problem directory into a zstd compressed
// tar archive with a hashed manifest, and unpacks it again.
package pack

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"iobot/internal/config"
	"iobot/internal/files"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Extension is the file extension of a data pack.
const Extension = ".tar.zst"

// Result describes a written pack.
type Result struct {
	Path     string
	SHA256   string
	Size     int64
	Manifest Manifest
}

type entry struct {
	name string // slash separated archive name
	path string // file on disk
	data []byte // used instead of path when set
}

// Build packs the generated directory dir into outPath. dir must hold an
// iobot.yaml whose inputs are files, as written by the generate flow.
func Build(ctx context.Context, dir, outPath string) (*Result, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	manifest, entries, err := collect(dir, cfg)
	if err != nil {
		return nil, err
	}

	body, err := manifest.seal()
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.PackFailed, "encode manifest failed")
	}
	entries = append(entries, entry{name: ManifestName, data: body})
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.PackFailed, "create pack directory failed")
	}
	sum, size, err := writeArchive(outPath, entries)
	if err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}

	logger.Info(ctx, "data pack written",
		zap.String("path", outPath),
		zap.Int("tests", len(manifest.Tests)),
		zap.Int64("size_bytes", size),
		zap.String("sha256", sum),
	)
	return &Result{Path: outPath, SHA256: sum, Size: size, Manifest: *manifest}, nil
}

func collect(dir string, cfg *config.Config) (*Manifest, []entry, error) {
	if cfg.Input.Files == nil {
		return nil, nil, appErr.Newf(appErr.PackInvalid, "inputs are not generated yet, run generate first")
	}
	if cfg.Kind == config.KindModelProgram {
		return nil, nil, appErr.Newf(appErr.PackInvalid, "outputs are not generated yet, run generate first")
	}

	inputs, err := files.List(dir, *cfg.Input.Files, files.Input)
	if err != nil {
		return nil, nil, err
	}
	inputRoot := cfg.Input.Files.Root(dir)

	manifest := &Manifest{
		Version:  manifestVersion,
		Kind:     cfg.Kind.String(),
		Verifier: cfg.Verifier != nil,
		Tests:    make([]ManifestTest, 0, len(inputs)),
	}
	entries := []entry{{name: config.FileName, path: filepath.Join(dir, config.FileName)}}

	for _, input := range inputs {
		rel, err := files.Rel(inputRoot, input)
		if err != nil {
			return nil, nil, err
		}
		test, err := describeInput(dir, input, rel)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry{name: test.InputPath, path: input})

		if cfg.Kind == config.KindOutputFiles {
			answer, err := findAnswer(cfg.OutputFiles.Root(dir), *cfg.OutputFiles, rel)
			if err != nil {
				return nil, nil, err
			}
			answerName, err := archiveName(dir, answer)
			if err != nil {
				return nil, nil, err
			}
			hash, err := hashFile(answer)
			if err != nil {
				return nil, nil, appErr.Wrapf(err, appErr.FileReadFailed, "hash %s failed", answer)
			}
			test.AnswerPath = answerName
			test.AnswerHash = hash
			entries = append(entries, entry{name: answerName, path: answer})
		}
		manifest.Tests = append(manifest.Tests, test)
	}
	return manifest, entries, nil
}

func describeInput(dir, input, rel string) (ManifestTest, error) {
	name, err := archiveName(dir, input)
	if err != nil {
		return ManifestTest{}, err
	}
	hash, err := hashFile(input)
	if err != nil {
		return ManifestTest{}, appErr.Wrapf(err, appErr.FileReadFailed, "hash %s failed", input)
	}
	id := filepath.ToSlash(strings.TrimSuffix(rel, files.Extension(rel)))
	return ManifestTest{TestID: id, InputPath: name, InputHash: hash}, nil
}

// findAnswer returns the output file paired with the input at rel: same
// relative path, first admitted output extension that exists.
func findAnswer(outRoot string, out files.Files, rel string) (string, error) {
	for _, ext := range out.Admitted(files.Output) {
		candidate := filepath.Join(outRoot, files.ReplaceExtension(rel, ext))
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", appErr.Newf(appErr.PackInvalid, "no output file for input %s", rel)
}

func archiveName(dir, p string) (string, error) {
	rel, err := files.Rel(dir, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func writeArchive(outPath string, entries []entry) (string, int64, error) {
	file, err := os.Create(outPath)
	if err != nil {
		return "", 0, appErr.Wrapf(err, appErr.PackFailed, "create pack failed")
	}
	defer file.Close()

	hasher := sha256.New()
	counter := &countingWriter{}
	zw, err := zstd.NewWriter(io.MultiWriter(file, hasher, counter))
	if err != nil {
		return "", 0, appErr.Wrapf(err, appErr.PackFailed, "create zstd writer failed")
	}
	tw := tar.NewWriter(zw)

	for _, e := range entries {
		if err := writeEntry(tw, e); err != nil {
			_ = zw.Close()
			return "", 0, err
		}
	}
	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return "", 0, appErr.Wrapf(err, appErr.PackFailed, "finish tar failed")
	}
	if err := zw.Close(); err != nil {
		return "", 0, appErr.Wrapf(err, appErr.PackFailed, "finish zstd stream failed")
	}
	if err := file.Close(); err != nil {
		return "", 0, appErr.Wrapf(err, appErr.PackFailed, "close pack failed")
	}
	return hex.EncodeToString(hasher.Sum(nil)), counter.n, nil
}

func writeEntry(tw *tar.Writer, e entry) error {
	var (
		r    io.Reader
		size int64
	)
	if e.data != nil {
		r = bytes.NewReader(e.data)
		size = int64(len(e.data))
	} else {
		f, err := os.Open(e.path)
		if err != nil {
			return appErr.Wrapf(err, appErr.FileReadFailed, "open %s failed", e.path)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return appErr.Wrapf(err, appErr.FileReadFailed, "stat %s failed", e.path)
		}
		r = f
		size = info.Size()
	}

	hdr := &tar.Header{
		Name:     e.name,
		Mode:     0644,
		Size:     size,
		Typeflag: tar.TypeReg,
		ModTime:  time.Unix(0, 0),
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return appErr.Wrapf(err, appErr.PackFailed, "write tar header %s failed", e.name)
	}
	if _, err := io.Copy(tw, r); err != nil {
		return appErr.Wrapf(err, appErr.PackFailed, "write tar entry %s failed", e.name)
	}
	return nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// Extract unpacks the pack at srcPath into dstDir and checks every file
// listed in the manifest against its hash.
func Extract(srcPath, dstDir string) (*Manifest, error) {
	if err := extractArchive(srcPath, dstDir); err != nil {
		return nil, err
	}
	manifest, err := LoadManifest(filepath.Join(dstDir, ManifestName))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.PackInvalid, "read manifest failed")
	}
	if !manifest.verifyHash() {
		return nil, appErr.Newf(appErr.PackInvalid, "manifest hash mismatch")
	}
	for _, test := range manifest.Tests {
		if err := verifyEntry(dstDir, test.InputPath, test.InputHash); err != nil {
			return nil, err
		}
		if test.AnswerPath != "" {
			if err := verifyEntry(dstDir, test.AnswerPath, test.AnswerHash); err != nil {
				return nil, err
			}
		}
	}
	return &manifest, nil
}

func verifyEntry(dstDir, name, want string) error {
	if !validEntryName(name) {
		return appErr.Newf(appErr.PackInvalid, "invalid manifest path %q", name)
	}
	got, err := hashFile(filepath.Join(dstDir, filepath.FromSlash(name)))
	if err != nil {
		return appErr.Wrapf(err, appErr.PackInvalid, "manifest entry %s missing", name)
	}
	if got != want {
		return appErr.Newf(appErr.PackInvalid, "hash mismatch for %s", name).WithDetail("path", name)
	}
	return nil
}

func validEntryName(name string) bool {
	clean := path.Clean(name)
	return name != "" && clean != ".." && !strings.HasPrefix(clean, "../") && !path.IsAbs(clean)
}

func extractArchive(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "open data pack failed")
	}
	defer file.Close()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.PackInvalid, "create zstd reader failed")
	}
	defer zstdReader.Close()

	root := filepath.Clean(dstDir)
	if err := os.MkdirAll(root, 0755); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", root)
	}

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.PackInvalid, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(filepath.FromSlash(hdr.Name))
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.Newf(appErr.PackInvalid, "invalid tar entry path %q", hdr.Name)
		}
		target := filepath.Join(root, cleanName)
		if !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return appErr.Newf(appErr.PackInvalid, "tar entry %q escapes destination", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.FileWriteFailed, "create dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.FileWriteFailed, "create parent dir failed")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode).Perm())
			if err != nil {
				return appErr.Wrapf(err, appErr.FileWriteFailed, "create file failed")
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return appErr.Wrapf(err, appErr.FileWriteFailed, "write file failed")
			}
			if err := out.Close(); err != nil {
				return appErr.Wrapf(err, appErr.FileWriteFailed, "close file failed")
			}
		default:
			// skip other types
		}
	}
	return nil
}
