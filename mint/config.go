package mint

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LogLevel controls mint.Mint's log verbosity, mirroring the teacher's
// three-way Info/Debug/Disable switch.
type LogLevel int

const (
	Info LogLevel = iota
	Debug
	Disable
)

// Config holds everything needed to load or create a Mint, read from
// the environment (optionally via a .env file) the way the teacher's
// cmd/mint reads MINT_PORT, MINT_DB_PATH, etc.
type Config struct {
	DataDir  string
	LogLevel LogLevel
}

// GetConfig loads .env if present, then reads the environment. Missing
// values fall back to sane defaults, matching the teacher's "MINT_PORT
// defaults to ..." posture for optional knobs; it exits the process via
// log.Fatal only when the default data directory cannot be resolved or
// created.
func GetConfig() Config {
	_ = godotenv.Load()

	cfg := Config{DataDir: os.Getenv("CREDITMINT_DATA_DIR")}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	switch os.Getenv("CREDITMINT_LOG_LEVEL") {
	case "debug":
		cfg.LogLevel = Debug
	case "disable":
		cfg.LogLevel = Disable
	default:
		cfg.LogLevel = Info
	}

	return cfg
}

// defaultDataDir returns $HOME/.creditmint, creating it if necessary,
// mirroring the teacher's mintPath() helper.
func defaultDataDir() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".creditmint")
	if err := os.MkdirAll(path, 0700); err != nil {
		log.Fatal(err)
	}
	return path
}
