// Package tacticfile reads and writes tactics as JSON, gzip-compressed
// JSON or YAML files.
package tacticfile

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lineupkit/tacticboard/pkg/core"
	"gopkg.in/yaml.v3"
)

// Format is an on-disk encoding of a tactic.
type Format string

const (
	FormatJSON     Format = "json"
	FormatJSONGzip Format = "json.gz"
	FormatYAML     Format = "yaml"
)

// Extension returns the file suffix for f, including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat maps a config value onto a Format. compress only applies to JSON.
func ParseFormat(name string, compress bool) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		if compress {
			return FormatJSONGzip, nil
		}
		return FormatJSON, nil
	case "json.gz", "gz", "gzip":
		return FormatJSONGzip, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown tactic file format: %q", name)
	}
}

// FormatFromPath picks the format from a file name.
func FormatFromPath(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json.gz"):
		return FormatJSONGzip, nil
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("cannot tell tactic file format from %q", path)
	}
}

// Encode writes t to w in format f.
func Encode(w io.Writer, t core.Tactic, f Format) error {
	switch f {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(t)
	case FormatJSONGzip:
		gzWriter := gzip.NewWriter(w)
		if err := json.NewEncoder(gzWriter).Encode(t); err != nil {
			gzWriter.Close()
			return err
		}
		return gzWriter.Close()
	case FormatYAML:
		yamlEncoder := yaml.NewEncoder(w)
		yamlEncoder.SetIndent(2)
		if err := yamlEncoder.Encode(t); err != nil {
			return err
		}
		return yamlEncoder.Close()
	default:
		return fmt.Errorf("unknown tactic file format: %q", f)
	}
}

// Decode reads a tactic in format f from r.
func Decode(r io.Reader, f Format) (core.Tactic, error) {
	var t core.Tactic
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&t); err != nil {
			return core.Tactic{}, fmt.Errorf("decode json: %w", err)
		}
	case FormatJSONGzip:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return core.Tactic{}, fmt.Errorf("open gzip: %w", err)
		}
		defer gzReader.Close()
		if err := json.NewDecoder(gzReader).Decode(&t); err != nil {
			return core.Tactic{}, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&t); err != nil {
			return core.Tactic{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return core.Tactic{}, fmt.Errorf("unknown tactic file format: %q", f)
	}
	return t, nil
}

// ReadFile loads a tactic, picking the format from the file name.
func ReadFile(path string) (core.Tactic, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return core.Tactic{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return core.Tactic{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	t, err := Decode(file, f)
	if err != nil {
		return core.Tactic{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteFile saves t to path, picking the format from the file name.
// Missing parent directories are created.
func WriteFile(path string, t core.Tactic) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Encode(file, t, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
