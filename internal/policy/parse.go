package policy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
)

// Format is a policy document encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ParseYAML decodes and validates a YAML document
func ParseYAML(data []byte) (*Document, error) {
	return decode(data, FormatYAML)
}

// ParseJSON decodes and validates a JSON document
func ParseJSON(data []byte) (*Document, error) {
	return decode(data, FormatJSON)
}

// ParseTOML decodes and validates a TOML document
func ParseTOML(data []byte) (*Document, error) {
	return decode(data, FormatTOML)
}

// Parse sniffs the encoding: compressed input is inflated first, JSON is
// recognized by content and anything else is read as YAML
func Parse(data []byte) (*Document, error) {
	data, err := inflate(data)
	if err != nil {
		return nil, err
	}
	if mimetype.Detect(data).Is("application/json") {
		return decode(data, FormatJSON)
	}
	return decode(data, FormatYAML)
}

// Load reads a policy file. The format follows the extension; .gz and .zst
// files are decompressed.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	data, err = inflate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	format, ok := formatOf(path)
	if !ok {
		doc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return doc, nil
	}

	doc, err := decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadDir merges every policy file under dir whose slash-separated relative
// path matches pattern (for example "**/*.yaml"). Files merge in path order.
func LoadDir(ctx context.Context, dir, pattern string) (*Document, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidPolicy, pattern)
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

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
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			paths = append(paths, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policy dir: %w", err)
	}
	sort.Strings(paths)

	merged := &Document{Version: 1, Fields: make(map[string]FieldPolicy)}
	for _, p := range paths {
		doc, err := Load(p)
		if err != nil {
			return nil, err
		}
		merged.Merge(doc)
	}
	return merged, nil
}

func decode(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = sonic.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, format, err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func formatOf(path string) (Format, bool) {
	name := strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".zst")
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// inflate decompresses gzip or zstd input, detected by content
func inflate(data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("application/gzip"):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidPolicy, err)
		}
		defer r.Close()
		return readAll(r, "gzip")
	case mtype.Is("application/zstd"):
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidPolicy, err)
		}
		defer r.Close()
		return readAll(r, "zstd")
	}
	return data, nil
}

func readAll(r io.Reader, codec string) ([]byte, error) {
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, codec, err)
	}
	return out, nil
}
