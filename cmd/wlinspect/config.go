package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

type fileConfig struct {
	Protocol string `toml:"protocol"`
	LogLevel string `toml:"log_level"`
}

type config struct {
	// protocol is the path of a protocol definition; empty selects the core
	// tables.
	protocol string
	logLevel log15.Lvl
}

func defaultConfig() config {
	return config{logLevel: log15.LvlWarn}
}

// loadConfig overlays the settings defined in the file at path onto cfg.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load wlinspect config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, errors.Errorf("load wlinspect config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("protocol") {
		cfg.protocol = strings.TrimSpace(raw.Protocol)
	}
	if meta.IsDefined("log_level") {
		lvl, err := log15.LvlFromString(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return config{}, errors.Wrap(err, "parse log_level")
		}
		cfg.logLevel = lvl
	}
	return cfg, nil
}
