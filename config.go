package docstore

import (
	"github.com/jinzhu/configor"
	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/logging"
	"github.com/xdbsoft/docstore/rules"
)

// Config contains all required information for the initialisation of a
// docstore server
type Config struct {
	Addr string `default:":1338"`

	// Backend selects the durable storage: file, bolt, sqlite, postgres or
	// memory.
	Backend   string `default:"file"`
	DataDir   string `default:"./data"`
	DBConnStr string

	OpenIDConnectIssuer string
	Rules               []rules.Rule

	// IDGenerator is xid or uuid.
	IDGenerator    string `default:"xid"`
	MaxBodyBytes   int64  `default:"10485760"`
	AllowedOrigins []string

	Log logging.Config
}

// LoadConfig reads the given files, TOML, YAML or JSON, then applies
// DOCSTORE_ environment overrides and defaults.
func LoadConfig(files ...string) (Config, error) {
	var cfg Config
	loader := configor.New(&configor.Config{ENVPrefix: "DOCSTORE"})
	if err := loader.Load(&cfg, files...); err != nil {
		return cfg, errors.Wrap(err, "unable to load configuration")
	}
	return cfg, nil
}
