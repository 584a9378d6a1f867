// Build-time tool that installs the native libraries the detector and the
// ORT embedding build link against: the ONNX Runtime shared library and the
// HuggingFace tokenizers static library.
//
// Required env: ORT_VERSION        (e.g. "1.23.2")
// Optional env: ORT_LIB_DIR        (default "./lib")
//               TOKENIZERS_VERSION (default "1.24.0")
//
// Point DETECTOR_ORT_LIBRARY at the installed libonnxruntime.
//
// Usage: ORT_VERSION=1.23.2 go run ./tools/download-ort
package main

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const defaultTokenizersVersion = "1.24.0"

// artifact is one library extracted from a release tarball.
type artifact struct {
	name    string
	url     string
	library string
}

// platform names the release archives of one GOOS/GOARCH.
type platform struct {
	ortArchive        string
	ortLibrary        string
	tokenizersArchive string
}

var platforms = map[string]platform{
	"linux/amd64":  {"onnxruntime-linux-x64-%s.tgz", "libonnxruntime.so", "libtokenizers.linux-amd64.tar.gz"},
	"linux/arm64":  {"onnxruntime-linux-aarch64-%s.tgz", "libonnxruntime.so", "libtokenizers.linux-arm64.tar.gz"},
	"darwin/arm64": {"onnxruntime-osx-arm64-%s.tgz", "libonnxruntime.dylib", "libtokenizers.darwin-arm64.tar.gz"},
	"darwin/amd64": {"onnxruntime-osx-x86_64-%s.tgz", "libonnxruntime.dylib", "libtokenizers.darwin-x86_64.tar.gz"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ortVersion := os.Getenv("ORT_VERSION")
	if ortVersion == "" {
		return errors.New("ORT_VERSION env var is required")
	}
	tokVersion := envOr("TOKENIZERS_VERSION", defaultTokenizersVersion)
	destDir := envOr("ORT_LIB_DIR", "./lib")

	key := runtime.GOOS + "/" + runtime.GOARCH
	p, ok := platforms[key]
	if !ok {
		return fmt.Errorf("no release archives for %s", key)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	artifacts := []artifact{
		{
			name:    "ONNX Runtime " + ortVersion,
			url:     fmt.Sprintf("https://github.com/microsoft/onnxruntime/releases/download/v%s/"+p.ortArchive, ortVersion, ortVersion),
			library: p.ortLibrary,
		},
		{
			name:    "tokenizers " + tokVersion,
			url:     fmt.Sprintf("https://github.com/daulet/tokenizers/releases/download/v%s/%s", tokVersion, p.tokenizersArchive),
			library: "libtokenizers.a",
		},
	}
	for _, a := range artifacts {
		if err := install(a, destDir); err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func install(a artifact, destDir string) error {
	dest := filepath.Join(destDir, a.library)
	if _, err := os.Stat(dest); err == nil {
		fmt.Printf("%s already exists, skipping\n", dest)
		return nil
	}

	fmt.Printf("Downloading %s from %s\n", a.name, a.url)
	delay := 2 * time.Second
	var err error
	for i := range 4 {
		if i > 0 {
			fmt.Fprintf(os.Stderr, "retry in %s: %v\n", delay, err)
			time.Sleep(delay)
			delay *= 2
		}
		if err = fetch(a, dest); err == nil {
			fmt.Printf("%s installed to %s\n", a.name, dest)
			return nil
		}
	}
	return err
}

func fetch(a artifact, dest string) error {
	resp, err := http.Get(a.url) //nolint:gosec
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, a.url)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	// Versioned variants such as libonnxruntime.1.23.2.dylib also match.
	stem := strings.TrimSuffix(a.library, filepath.Ext(a.library))

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s not found in archive", a.library)
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		base := filepath.Base(header.Name)
		if base != a.library && !strings.HasPrefix(base, stem+".") {
			continue
		}
		return writeFile(dest, tr)
	}
}

func writeFile(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}
