package device

import "fmt"

// Catalog drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Config selects the device catalog. Path is the database for sqlite and a
// YAML document for file.
type Config struct {
	Driver string `toml:"driver" json:"driver,omitempty"`
	Path   string `toml:"path" json:"path,omitempty"`
	// Watch reloads a file catalog when the document changes on disk.
	Watch bool `toml:"watch" json:"watch,omitempty"`
}

// DefaultConfig keeps devices next to history in the local database.
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
	if source.Watch {
		c.Watch = true
	}
}

// Open creates the catalog described by cfg.
func Open(cfg *Config) (Catalog, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverFile:
		reg, err := OpenFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Watch {
			if err := reg.Watch(); err != nil {
				reg.Close()
				return nil, err
			}
		}
		return reg, nil
	case DriverMemory:
		return NewMemoryRegistry(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
