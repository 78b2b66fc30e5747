package cardinalconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
)

const (
	envPrefix = "CARDINAL"
	envDelim  = "__"
)

// Load reads one or more TOML config paths (files or directories of
// *.toml files, sorted by name) and merges them in order, later files
// overriding earlier ones at the key level, then applies the environment
// overlay.
func Load(paths []string) (*Config, error) {
	merged := map[string]interface{}{}

	for _, p := range paths {
		files, err := collectFiles(p)
		if err != nil {
			return nil, cardinalerrors.NewLoadError("collecting config files for "+p, err)
		}
		for _, f := range files {
			var doc map[string]interface{}
			if _, err := toml.DecodeFile(f, &doc); err != nil {
				return nil, cardinalerrors.NewLoadError("parsing config file "+f, err)
			}
			merged = shallowMergeTables(merged, doc)
		}
	}

	applyEnvOverlay(merged)

	cfg, err := decodeMap(merged)
	if err != nil {
		return nil, cardinalerrors.NewLoadError("decoding merged configuration", err)
	}

	if cfg.Server.Address == "" {
		cfg.Server = Server{
			Address:                  DefaultServer().Address,
			ForcePathParameter:       cfg.Server.ForcePathParameter,
			LogUpstreamResponse:      cfg.Server.LogUpstreamResponse,
			GlobalRequestMiddleware:  cfg.Server.GlobalRequestMiddleware,
			GlobalResponseMiddleware: cfg.Server.GlobalResponseMiddleware,
		}
	}

	for name, dest := range cfg.Destinations {
		dest.Name = name
	}

	return cfg, nil
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && strings.EqualFold(filepath.Ext(p), ".toml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// shallowMergeTables merges b into a: keys present in b replace those in
// a, except when both values are tables, in which case the merge recurses
// into them at every depth.
func shallowMergeTables(a, b map[string]interface{}) map[string]interface{} {
	if a == nil {
		a = map[string]interface{}{}
	}
	for k, bv := range b {
		if av, ok := a[k]; ok {
			aTable, aIsTable := av.(map[string]interface{})
			bTable, bIsTable := bv.(map[string]interface{})
			if aIsTable && bIsTable {
				a[k] = shallowMergeTables(aTable, bTable)
				continue
			}
		}
		a[k] = bv
	}
	return a
}

// applyEnvOverlay walks CARDINAL__TABLE__KEY style environment variables
// and overlays them onto the merged document as leaf values: booleans and
// integers are parsed, comma-separated values become string arrays, and
// anything else is kept as a string.
func applyEnvOverlay(doc map[string]interface{}) {
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if !strings.HasPrefix(key, envPrefix+envDelim) {
			continue
		}
		path := strings.Split(strings.TrimPrefix(key, envPrefix+envDelim), envDelim)
		setNested(doc, path, coerceEnvValue(value))
	}
}

func setNested(doc map[string]interface{}, path []string, value interface{}) {
	cur := doc
	for i, segment := range path {
		key := strings.ToLower(segment)
		if i == len(path)-1 {
			cur[key] = value
			return
		}
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[key] = next
		}
		cur = next
	}
}

func coerceEnvValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	}
	return raw
}

func decodeMap(doc map[string]interface{}) (*Config, error) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	var cfg Config
	if _, err := toml.Decode(buf.String(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
