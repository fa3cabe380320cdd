package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "creditnode.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "creditnode.log"
	defaultLogLevel       = "info"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultIdentityFile   = "identity.key"
)

// config mirrors lndMain's loaded *config: a single flat struct parsed once
// at startup, every field either a wire parameter or a filesystem location,
// nothing here standing for chain/wallet state since this module has none.
type config struct {
	DataDir string `long:"datadir" description:"Directory to store the mutation log and identity key in"`
	LogDir  string `long:"logdir" description:"Directory to log output"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical}"`

	MaxLogFiles    int `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	IndexServer string `long:"indexserver" description:"Websocket address of the index server to report capacity to (omitted: index reporting disabled)"`

	ConfigFile string `long:"configfile" description:"Path to configuration file"`
}

// defaultConfig mirrors lnd's defaultConfig(): every field pre-populated
// with a usable default before flags or a config file override it.
func defaultConfig() config {
	dataDir := defaultAppDataDir()
	return config{
		DataDir:        filepath.Join(dataDir, defaultDataDirname),
		LogDir:         filepath.Join(dataDir, defaultLogDirname),
		DebugLevel:     defaultLogLevel,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		ConfigFile:     filepath.Join(dataDir, defaultConfigFilename),
	}
}

// defaultAppDataDir resolves ~/.creditnode, the stand-in for btcutil's
// AppDataDir helper (out of this module's dependency surface; the pack's
// only per-OS app-data-dir helper lives inside btcutil, which nothing else
// in this tree imports, so introducing it for this one call isn't
// justified).
func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".creditnode"
	}
	return filepath.Join(home, ".creditnode")
}

// loadConfig mirrors lnd's loadConfig: defaults, then a pre-parse pass for
// -configfile/-datadir so a non-default datadir's config file is honored,
// then the config file, then flags again so the command line always wins.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	preCfg := cfg
	if _, err := flags.NewParser(&preCfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	if preCfg.ConfigFile != cfg.ConfigFile {
		cfg.ConfigFile = preCfg.ConfigFile
	}
	if preCfg.DataDir != cfg.DataDir {
		cfg.DataDir = preCfg.DataDir
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		parser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", cfg.ConfigFile, err)
		}
	}

	if _, err := flags.NewParser(&cfg, flags.Default).Parse(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	return &cfg, nil
}

func (c *config) identityFilePath() string {
	return filepath.Join(c.DataDir, defaultIdentityFile)
}

func (c *config) logFilePath() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}
