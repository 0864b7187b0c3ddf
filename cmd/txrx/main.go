package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chzchzchz/txrx/txrx"
)

var rootCmd = &cobra.Command{
	Use:          "txrx",
	Short:        "Transmit a waveform while recording received samples to file.",
	SilenceUsage: true,
}

var (
	flagCfg      = txrx.DefaultConfig()
	configFile   string
	settlingSecs float64
	txGain       float64
	rxGain       float64
)

// overrides copies each flag given on the command line into a loaded config.
var overrides = map[string]func(c *txrx.Config){
	"tx-args":     func(c *txrx.Config) { c.TxArgs = flagCfg.TxArgs },
	"rx-args":     func(c *txrx.Config) { c.RxArgs = flagCfg.RxArgs },
	"file":        func(c *txrx.Config) { c.File = flagCfg.File },
	"type":        func(c *txrx.Config) { c.Type = flagCfg.Type },
	"nsamps":      func(c *txrx.Config) { c.NumSamps = flagCfg.NumSamps },
	"settling":    func(c *txrx.Config) { c.Settling = txrx.Seconds(settlingSecs * float64(time.Second)) },
	"spb":         func(c *txrx.Config) { c.SamplesPerBuffer = flagCfg.SamplesPerBuffer },
	"tx-rate":     func(c *txrx.Config) { c.TxRate = flagCfg.TxRate },
	"rx-rate":     func(c *txrx.Config) { c.RxRate = flagCfg.RxRate },
	"tx-freq":     func(c *txrx.Config) { c.TxFreq = flagCfg.TxFreq },
	"rx-freq":     func(c *txrx.Config) { c.RxFreq = flagCfg.RxFreq },
	"tx-gain":     func(c *txrx.Config) { c.TxGain = &txGain },
	"rx-gain":     func(c *txrx.Config) { c.RxGain = &rxGain },
	"wave-type":   func(c *txrx.Config) { c.WaveType = flagCfg.WaveType },
	"wave-freq":   func(c *txrx.Config) { c.WaveFreq = flagCfg.WaveFreq },
	"ampl":        func(c *txrx.Config) { c.Ampl = flagCfg.Ampl },
	"otw":         func(c *txrx.Config) { c.OTW = flagCfg.OTW },
	"tx-channels": func(c *txrx.Config) { c.TxChannels = flagCfg.TxChannels },
	"rx-channels": func(c *txrx.Config) { c.RxChannels = flagCfg.RxChannels },
}

func init() {
	runCmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Transmit and receive until interrupted or nsamps arrive",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return run(cmd.Flags()) },
	}
	f := runCmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "YAML config file; flags override it")
	f.StringVar(&flagCfg.TxArgs, "tx-args", flagCfg.TxArgs, "Device args for the transmit device")
	f.StringVar(&flagCfg.RxArgs, "rx-args", flagCfg.RxArgs, "Device args for the receive device")
	f.StringVarP(&flagCfg.File, "file", "o", flagCfg.File, "File to write received samples to")
	f.StringVar(&flagCfg.Type, "type", flagCfg.Type, "Sample type in file: double, float or short")
	f.Uint64VarP(&flagCfg.NumSamps, "nsamps", "n", 0, "Samples to receive per channel, 0 for continuous")
	f.Float64Var(&settlingSecs, "settling", flagCfg.Settling.Duration().Seconds(), "Seconds before receiving")
	f.IntVar(&flagCfg.SamplesPerBuffer, "spb", 0, "Samples per buffer, 0 for a default")
	f.Float64Var(&flagCfg.TxRate, "tx-rate", 0, "Transmit rate in samples/s")
	f.Float64Var(&flagCfg.RxRate, "rx-rate", 0, "Receive rate in samples/s")
	f.Float64Var(&flagCfg.TxFreq, "tx-freq", 0, "Transmit RF center frequency in Hz")
	f.Float64Var(&flagCfg.RxFreq, "rx-freq", 0, "Receive RF center frequency in Hz")
	f.Float64Var(&txGain, "tx-gain", 0, "Transmit gain in dB")
	f.Float64Var(&rxGain, "rx-gain", 0, "Receive gain in dB")
	f.StringVar(&flagCfg.WaveType, "wave-type", flagCfg.WaveType, "Waveform: CONST, SQUARE, RAMP or SINE")
	f.Float64Var(&flagCfg.WaveFreq, "wave-freq", 0, "Waveform frequency in Hz")
	f.Float64Var(&flagCfg.Ampl, "ampl", flagCfg.Ampl, "Amplitude of the waveform")
	f.StringVar(&flagCfg.OTW, "otw", flagCfg.OTW, "Over the wire sample format: sc16 or sc8")
	f.StringVar(&flagCfg.TxChannels, "tx-channels", flagCfg.TxChannels, `Transmit channels, e.g. "0" or "0,1"`)
	f.StringVar(&flagCfg.RxChannels, "rx-channels", flagCfg.RxChannels, `Receive channels, e.g. "0" or "0,1"`)
	rootCmd.AddCommand(runCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect [flags] capture",
		Short: "Report the length and strongest tone of a capture",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return inspect(os.Stdout, args[0]) },
	}
	inspectCmd.Flags().StringVar(&inspectType, "type", "short", "Sample type in file: double, float or short")
	inspectCmd.Flags().Float64VarP(&inspectRate, "rate", "s", 0, "Sample rate in Hz")
	inspectCmd.Flags().IntVarP(&inspectBins, "bins", "b", 1024, "FFT size")
	inspectCmd.Flags().IntVar(&inspectFFTs, "ffts", 16, "FFTs to average")
	rootCmd.AddCommand(inspectCmd)
}

func loadConfig(fs *pflag.FlagSet) (*txrx.Config, error) {
	cfg := txrx.DefaultConfig()
	if configFile != "" {
		c, err := txrx.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = *c
	}
	fs.Visit(func(f *pflag.Flag) {
		if set, ok := overrides[f.Name]; ok {
			set(&cfg)
		}
	})
	return &cfg, nil
}

func run(fs *pflag.FlagSet) error {
	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	ctx, cancel := txrx.WithInterrupt(context.Background())
	defer cancel()
	if err := txrx.Run(ctx, *cfg); err != nil {
		return err
	}
	fmt.Println("Done!")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
