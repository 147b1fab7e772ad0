// Package config loads JULEA's INI-style configuration file (spec §6):
//
//	[clients]
//	max-connections = 8
//
//	[servers]
//	object = host1:4711;host2:4711
//	kv     = host1:4712
//
//	[object]
//	backend   = memstore
//	component = client
//	path      = /var/lib/julea/object
//
//	[kv]
//	backend   = memstore
//	component = client
//	path      = /var/lib/julea/kv
//
// No INI-parsing library appears anywhere in the example pack (it carries
// YAML and JSON parsers only), so this loader is the one hand-rolled,
// stdlib-only piece of the ambient stack — see DESIGN.md.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config is the fully resolved, process-wide configuration. It is read-only
// once loaded and may be shared across goroutines.
type Config struct {
	MaxConnections int

	ObjectServers []string // host:port, index == server-index
	KVServers     []string

	Object Backend
	KV     Backend
}

// Backend names the backend module and its deployment role for one of the
// two stores.
type Backend struct {
	Name      string // e.g. "memstore"
	Component string // "client" or "server"
	Path      string
}

const defaultMaxConnections = 8

// Load resolves the configuration file per the lookup order in spec §6:
// $JULEA_CONFIG (absolute path used as-is; relative treated as a file name
// under the XDG search path) then $XDG_CONFIG_HOME/julea/<name> then each
// $XDG_CONFIG_DIRS entry's julea/<name>.
func Load(name string) (*Config, error) {
	path, err := resolvePath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()
	return parse(f)
}

func resolvePath(name string) (string, error) {
	if env := os.Getenv("JULEA_CONFIG"); env != "" {
		if filepath.IsAbs(env) {
			return env, nil
		}
		name = env
	}

	var dirs []string
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		dirs = append(dirs, home)
	} else if h, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(h, ".config"))
	}
	if confDirs := os.Getenv("XDG_CONFIG_DIRS"); confDirs != "" {
		dirs = append(dirs, strings.Split(confDirs, ":")...)
	} else {
		dirs = append(dirs, "/etc/xdg")
	}

	for _, d := range dirs {
		p := filepath.Join(d, "julea", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Errorf("config: %q not found in any of %v", name, dirs)
}

func parse(f *os.File) (*Config, error) {
	cfg := &Config{MaxConnections: defaultMaxConnections}
	section := ""

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: line %d: expected key=value, got %q", lineNo, line)
		}
		key := strings.ToLower(strings.TrimSpace(k))
		val := strings.TrimSpace(v)
		if err := cfg.apply(section, key, val); err != nil {
			return nil, errors.Wrapf(err, "config: line %d", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cfg.ObjectServers) == 0 && len(cfg.KVServers) == 0 {
		return nil, errors.New("config: no servers configured")
	}
	return cfg, nil
}

func (cfg *Config) apply(section, key, val string) error {
	switch section {
	case "clients":
		switch key {
		case "max-connections":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return errors.Errorf("invalid max-connections %q", val)
			}
			cfg.MaxConnections = n
		}
	case "servers":
		switch key {
		case "object":
			cfg.ObjectServers = splitServers(val)
		case "kv":
			cfg.KVServers = splitServers(val)
		}
	case "object":
		applyBackend(&cfg.Object, key, val)
	case "kv":
		applyBackend(&cfg.KV, key, val)
	default:
		return errors.Errorf("unknown section %q", section)
	}
	return nil
}

func applyBackend(b *Backend, key, val string) {
	switch key {
	case "backend":
		b.Name = val
	case "component":
		b.Component = val
	case "path":
		b.Path = val
	}
}

func splitServers(val string) []string {
	parts := strings.Split(val, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, ":") {
			p += ":4711"
		}
		out = append(out, p)
	}
	return out
}
