package history

import "fmt"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Config selects and locates the history store. Path is the database file
// for sqlite and the root directory for file.
type Config struct {
	Driver string `toml:"driver" json:"driver,omitempty"`
	Path   string `toml:"path" json:"path,omitempty"`
}

// DefaultConfig stores history in a local SQLite database.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		Path:   "shellpilot.db",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// NewStore opens the store described by cfg.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverFile:
		return NewFileStore(cfg.Path), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
