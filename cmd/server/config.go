package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// serverConfig is the optional yaml config file; flags and env override it.
type serverConfig struct {
	DataDir     string `yaml:"data_dir"`
	AdminListen string `yaml:"admin_listen"`
	RPCURL      string `yaml:"rpc_url"`
	ProgramID   string `yaml:"program_id"`

	MCPListen     string `yaml:"mcp_listen"`
	MCPHMACSecret string `yaml:"mcp_hmac_secret"`
}

func defaultConfig() serverConfig {
	return serverConfig{
		DataDir:     "./data",
		AdminListen: "127.0.0.1:9333",
	}
}

func loadConfig(path string) (serverConfig, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return serverConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.AdminListen == "" {
		cfg.AdminListen = "127.0.0.1:9333"
	}
	return cfg, nil
}
