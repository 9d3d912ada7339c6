// Package config loads the controller configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBadger = "badger"
	StoreFile   = "file"
)

// Config is the controller configuration.
type Config struct {
	Server       Server    `yaml:"server" json:"server"`
	ProjectsPath string    `yaml:"projects_path" json:"projects_path"`
	Images       Images    `yaml:"images" json:"images"`
	Computes     []Compute `yaml:"computes" json:"computes"`
	Store        Store     `yaml:"store" json:"store"`
	NATSURL      string    `yaml:"nats_url" json:"nats_url"`
	LogLevel     string    `yaml:"log_level" json:"log_level"`
}

// Server is the REST listener. Local marks this controller as hosting the "local" compute.
type Server struct {
	Host  string `yaml:"host" json:"host"`
	Port  int    `yaml:"port" json:"port"`
	Local bool   `yaml:"local" json:"local"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Compute is a compute agent registered at startup.
type Compute struct {
	ID       string `yaml:"compute_id" json:"compute_id"`
	Protocol string `yaml:"protocol" json:"protocol"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
}

// Connection converts the entry for the compute package.
func (c Compute) Connection() compute.Connection {
	return compute.Connection{Protocol: c.Protocol, Host: c.Host, Port: c.Port, User: c.User, Password: c.Password}
}

// Store selects the project registry backend.
type Store struct {
	Kind       string `yaml:"kind" json:"kind"`
	RedisAddr  string `yaml:"redis_addr" json:"redis_addr"`
	BadgerPath string `yaml:"badger_path" json:"badger_path"`
	FilePath   string `yaml:"file_path" json:"file_path"`
}

// Images maps image store names (IOS, IOU, QEMU) to directories.
type Images map[string]string

var _ ports.ImageStore = Images(nil)

func (i Images) Dir(store string) (string, bool) {
	dir, ok := i[store]
	return dir, ok && dir != ""
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:       Server{Host: "127.0.0.1", Port: 3080, Local: true},
		ProjectsPath: filepath.Join("~", "topolab", "projects"),
		Images: Images{
			"IOS":  filepath.Join("~", "topolab", "images", "IOS"),
			"IOU":  filepath.Join("~", "topolab", "images", "IOU"),
			"QEMU": filepath.Join("~", "topolab", "images", "QEMU"),
		},
		Store:    Store{Kind: StoreMemory},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Files ending in .json are parsed as JSON, anything else as YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	case strings.ToLower(filepath.Ext(path)) == ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, naming its key.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d is not a valid port", c.Server.Port)
	}
	switch c.Store.Kind {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr: required for the redis store")
		}
	case StoreBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("store.badger_path: required for the badger store")
		}
	case StoreFile:
		if c.Store.FilePath == "" {
			return fmt.Errorf("store.file_path: required for the file store")
		}
	default:
		return fmt.Errorf("store.kind: unknown kind %q (want memory, file, redis or badger)", c.Store.Kind)
	}

	seen := make(map[string]bool)
	for i, cc := range c.Computes {
		if cc.ID == "" {
			return fmt.Errorf("computes[%d].compute_id: required", i)
		}
		if seen[cc.ID] {
			return fmt.Errorf("computes[%d].compute_id: duplicate id %q", i, cc.ID)
		}
		seen[cc.ID] = true
		if cc.Protocol != "" && cc.Protocol != "http" && cc.Protocol != "https" {
			return fmt.Errorf("computes[%d].protocol: %q is not http or https", i, cc.Protocol)
		}
		if cc.Host == "" {
			return fmt.Errorf("computes[%d].host: required", i)
		}
	}
	return nil
}

func (c *Config) expand() error {
	var err error
	if c.ProjectsPath, err = expandHome(c.ProjectsPath); err != nil {
		return err
	}
	if c.Store.BadgerPath, err = expandHome(c.Store.BadgerPath); err != nil {
		return err
	}
	if c.Store.FilePath, err = expandHome(c.Store.FilePath); err != nil {
		return err
	}
	for name, dir := range c.Images {
		if c.Images[name], err = expandHome(dir); err != nil {
			return err
		}
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}
