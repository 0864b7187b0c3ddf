package txrx

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chzchzchz/txrx/radio"
	"github.com/chzchzchz/txrx/wave"
)

// Seconds is a duration written in YAML as seconds ("0.2") or as a Go
// duration string ("200ms").
type Seconds time.Duration

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	var secs float64
	if err := value.Decode(&secs); err == nil {
		*s = Seconds(secs * float64(time.Second))
		return nil
	}
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return fmt.Errorf("duration %q: %w", str, err)
	}
	*s = Seconds(d)
	return nil
}

type Config struct {
	TxArgs string `yaml:"tx_args"`
	RxArgs string `yaml:"rx_args"`

	// File is the base name for received samples.
	File string `yaml:"file"`
	// Type is the receive sample type: double, float or short.
	Type     string `yaml:"type"`
	NumSamps uint64 `yaml:"nsamps"`
	// Settling delays the first receive; YAML takes seconds or "200ms".
	Settling Seconds `yaml:"settling"`
	// SamplesPerBuffer of zero picks ten transmit packets.
	SamplesPerBuffer int `yaml:"spb"`

	TxRate float64 `yaml:"tx_rate"`
	RxRate float64 `yaml:"rx_rate"`
	// Tuning is only applied when non-zero / set.
	TxFreq float64  `yaml:"tx_freq"`
	RxFreq float64  `yaml:"rx_freq"`
	TxGain *float64 `yaml:"tx_gain"`
	RxGain *float64 `yaml:"rx_gain"`

	WaveType string  `yaml:"wave_type"`
	WaveFreq float64 `yaml:"wave_freq"`
	Ampl     float64 `yaml:"ampl"`

	// OTW is the over-the-wire format requested from the device.
	OTW        string `yaml:"otw"`
	TxChannels string `yaml:"tx_channels"`
	RxChannels string `yaml:"rx_channels"`
}

func DefaultConfig() Config {
	return Config{
		TxArgs:     "type=sim",
		RxArgs:     "type=sim",
		File:       "usrp_samples.dat",
		Type:       "short",
		Settling:   Seconds(200 * time.Millisecond),
		WaveType:   "CONST",
		Ampl:       0.3,
		OTW:        "sc16",
		TxChannels: "0",
		RxChannels: "0",
	}
}

// LoadConfig reads a YAML config on top of the defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TxRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: tx rate %g", radio.ErrRateOutOfRange, c.TxRate))
	}
	if c.RxRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: rx rate %g", radio.ErrRateOutOfRange, c.RxRate))
	}
	if _, err := radio.ParseFormat(c.Type); err != nil {
		errs = append(errs, err)
	}
	if _, err := wave.ParseKind(c.WaveType); err != nil {
		errs = append(errs, err)
	}
	if c.Settling < 0 {
		errs = append(errs, fmt.Errorf("negative settling time %v", c.Settling.Duration()))
	}
	if c.SamplesPerBuffer < 0 {
		errs = append(errs, fmt.Errorf("negative samples per buffer %d", c.SamplesPerBuffer))
	}
	if c.File == "" {
		errs = append(errs, errors.New("no output file"))
	}
	return errors.Join(errs...)
}
