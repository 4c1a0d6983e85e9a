package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/semcoach/agent/agenttest"
	"github.com/c360studio/semcoach/model"
)

// modelPrefix names the mock model serving a capability.
const modelPrefix = "mock-"

func modelFor(c model.Capability) string {
	return modelPrefix + string(c)
}

// cannedFixtures serves the built-in valid week, one model per capability.
func cannedFixtures() map[string][]string {
	replies := agenttest.Replies()
	fixtures := make(map[string][]string, len(replies))
	for c, reply := range replies {
		fixtures[modelFor(c)] = []string{reply}
	}
	return fixtures
}

// registryConfig routes every capability to its mock model at baseURL.
func registryConfig(baseURL string) *model.RegistryConfig {
	cfg := &model.RegistryConfig{
		Capabilities: make(map[string]*model.CapabilityConfig),
		Endpoints:    make(map[string]*model.EndpointConfig),
		Defaults:     &model.DefaultsConfig{Model: modelFor(model.CapabilityFast)},
	}
	for _, c := range model.AllCapabilities() {
		name := modelFor(c)
		cfg.Capabilities[string(c)] = &model.CapabilityConfig{
			Description: "mock " + string(c),
			Preferred:   []string{name},
		}
		cfg.Endpoints[name] = &model.EndpointConfig{
			Provider: "ollama",
			URL:      baseURL,
			Model:    name,
		}
	}
	return cfg
}

func writeRegistry(path, baseURL string) error {
	data, err := json.MarshalIndent(registryConfig(baseURL), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// numberedFileRe matches files like "mock-reviewing.1.json" or "planning.2.txt".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.(json|txt)$`)

// loadFixtures reads .json and .txt files from dir and returns a map of
// model→content sequence. JSON files must be valid JSON; text files are
// served verbatim so fenced or malformed replies can be scripted.
//
// For each model, fixtures are ordered:
//  1. Numbered files (model.1.json, model.2.json, ...) in numeric order
//  2. Base file (model.json or model.txt) appended as the final fallback
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)             // model → content
	numberedFiles := make(map[string]map[int]string) // model → {index → content}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(info.Name())
		if info.IsDir() || (ext != ".json" && ext != ".txt") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if ext == ".json" && !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			name := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[name] == nil {
				numberedFiles[name] = make(map[int]string)
			}
			numberedFiles[name][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ext)] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	for m := range baseFiles {
		names[m] = true
	}
	for m := range numberedFiles {
		names[m] = true
	}

	fixtures := make(map[string][]string)
	for name := range names {
		var seq []string
		if numbered, ok := numberedFiles[name]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}
		if base, ok := baseFiles[name]; ok {
			seq = append(seq, base)
		}
		fixtures[name] = seq
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
