package tapzero

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Options is the file-loadable subset of Config.
type Options struct {
	Strict        bool          `yaml:"strict"`
	ScheduleDelay time.Duration `yaml:"schedule_delay" validate:"min=0"`
}

var validate = validator.New()

// LoadOptions reads and validates runner options from a YAML file.
func LoadOptions(path string) (*Options, error) {
	log.Debug("Reading runner options file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options file: %w", err)
	}

	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("parsing options file: %w", err)
	}
	if err := validate.Struct(&opts); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return &opts, nil
}

// Config returns a runner Config carrying these options. Sink, logger and
// exit behavior stay at their defaults.
func (o *Options) Config() Config {
	return Config{
		Strict:        o.Strict,
		ScheduleDelay: o.ScheduleDelay,
	}
}
