package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semcoach/training"
)

// Output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func writeOutput(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case "", formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// readRequest loads a generation request from a JSON or YAML file. A path
// of "-" reads stdin, where a leading brace selects JSON.
func readRequest(path string, stdin io.Reader) (training.GenerationRequest, error) {
	var req training.GenerationRequest

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}

	asJSON := strings.HasPrefix(strings.TrimSpace(string(data)), "{")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		asJSON = true
	case ".yaml", ".yml":
		asJSON = false
	}

	if asJSON {
		err = json.Unmarshal(data, &req)
	} else {
		err = yaml.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// createOutput opens the output destination. An empty path is stdout.
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
