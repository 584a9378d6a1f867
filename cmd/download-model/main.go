// Command download-model fetches the ONNX export of the sentence embedding
// model into a model directory for the built-in hugot embedder.
//
// Usage: download-model [dest]
//
// dest defaults to EMBEDDING_MODEL_DIR, then {DATA_DIR}/models. Pass
// infrastructure/provider/models to prepare an embed_model build.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knights-analytics/hugot"

	"github.com/smartsense/smartsense/internal/config"
)

// modelName is the HuggingFace repository of the default embedder.
const modelName = "sentence-transformers/all-MiniLM-L6-v2"

const attempts = 4

func main() {
	dest, err := destination(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve destination: %v\n", err)
		os.Exit(1)
	}

	if path, ok := present(dest); ok {
		fmt.Printf("Model already present at %s\n", path)
		return
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Downloading %s to %s...\n", modelName, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"

	var modelPath string
	delay := 2 * time.Second
	for i := range attempts {
		if i > 0 {
			fmt.Fprintf(os.Stderr, "retry in %s: %v\n", delay, err)
			time.Sleep(delay)
			delay *= 2
		}
		if modelPath, err = hugot.DownloadModel(modelName, dest, opts); err == nil {
			break
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "download model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model ready at %s\n", modelPath)
}

func destination(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := config.LoadConfig("")
	if err != nil {
		return "", err
	}
	if cfg.EmbeddingModelDir() == "" {
		return "", errors.New("no model directory configured")
	}
	return cfg.EmbeddingModelDir(), nil
}

// present reports the first model subdirectory of dest with a tokenizer.
func present(dest string) (string, bool) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(dest, e.Name())
		if _, err := os.Stat(filepath.Join(dir, "tokenizer.json")); err == nil {
			return dir, true
		}
	}
	return "", false
}
