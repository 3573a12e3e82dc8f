// norflash drives a W25Q128 class NOR flash over a simulated or spidev bus.
//
// Synopsis:
//
//	norflash [OPTIONS] COMMAND [ARGS]
//
// Commands:
//
//	info                     probe and print the bound device
//	read ADDR LEN [FILE]     read LEN bytes, hex dump unless FILE is given
//	write ADDR FILE          write FILE at ADDR
//	erase sector|block ADDR  erase the sector or block holding ADDR
//	erase chip               erase the whole device
//	program FILE.hex         write an Intel HEX image and verify it
//	boot                     validate the application vector table
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/moffa90/go-norflash/norflash"
)

var errUsage = errors.New("usage")

type options struct {
	config      string
	bus         string
	image       string
	speed       uint32
	appOffset   uint32
	mappedBase  uint32
	metricsFile string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "norflash:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var o options
	fs := flag.NewFlagSet("norflash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.config, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&o.bus, "bus", "b", "", "bus: sim, sim-dual or spidev:PATH")
	fs.StringVar(&o.image, "image", "", "simulator backing file")
	fs.Uint32Var(&o.speed, "speed", 0, "spidev clock in Hz")
	fs.Uint32Var(&o.appOffset, "app-offset", 0, "application offset in flash")
	fs.Uint32Var(&o.mappedBase, "mapped-base", 0, "CPU address of the memory-mapped window")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	fs.Usage = func() { usage(fs, stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	if fs.Changed("bus") {
		cfg.Bus = o.bus
	}
	if fs.Changed("image") {
		cfg.Image = o.image
	}
	if fs.Changed("speed") {
		cfg.SpeedHz = o.speed
	}
	if fs.Changed("app-offset") {
		cfg.AppOffset = o.appOffset
	}
	if fs.Changed("mapped-base") {
		cfg.MappedBase = o.mappedBase
	}
	timeouts, err := cfg.Timeouts.Resolve(norflash.DefaultTimeouts())
	if err != nil {
		return err
	}

	logger, flush := newLogger(stderr, o.verbose)
	defer flush()

	bus, closeBus, err := openBus(cfg)
	if err != nil {
		return err
	}

	devices := norflash.DefaultDevices(timeouts)
	if strings.HasPrefix(cfg.Bus, "spidev:") {
		// spidev has no dual organisation and a configure failure ends probing.
		devices = []norflash.Device{norflash.NewW25Q128Single(timeouts)}
	}

	registry := prometheus.NewRegistry()
	flash := norflash.New(bus,
		norflash.WithDevices(devices...),
		norflash.WithScratchSize(cfg.ScratchSize),
		norflash.WithLogger(norflash.LogrLogger(logger)),
		norflash.WithMetrics(norflash.NewMetrics(registry)),
		norflash.WithProgressCallback(progressPrinter(stderr)),
	)

	c := &cli{flash: flash, cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	err = c.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	if errors.Is(err, errUsage) {
		fs.Usage()
	}

	// Leave a real part in reset and persist simulator contents even when
	// the command failed.
	if _, ok := flash.Bound(); ok {
		if uerr := flash.Unbind(context.WithoutCancel(ctx)); uerr != nil {
			logger.Error(uerr, "Unbind failed")
		}
	}
	if cerr := closeBus(); cerr != nil && err == nil {
		err = fmt.Errorf("close bus: %w", cerr)
	}
	if o.metricsFile != "" {
		if merr := prometheus.WriteToTextfile(o.metricsFile, registry); merr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", merr)
		}
	}
	return err
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: norflash [OPTIONS] COMMAND [ARGS]\n\n")
	fmt.Fprintf(w, "Options:\n%s\n", fs.FlagUsages())
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  info                     probe and print the bound device\n")
	fmt.Fprintf(w, "  read ADDR LEN [FILE]     read LEN bytes, hex dump unless FILE is given\n")
	fmt.Fprintf(w, "  write ADDR FILE          write FILE at ADDR\n")
	fmt.Fprintf(w, "  erase sector|block ADDR  erase the sector or block holding ADDR\n")
	fmt.Fprintf(w, "  erase chip               erase the whole device\n")
	fmt.Fprintf(w, "  program FILE.hex         write an Intel HEX image and verify it\n")
	fmt.Fprintf(w, "  boot                     validate the application vector table\n")
}

// cli carries the state shared by every command.
type cli struct {
	flash  *norflash.Flash
	cfg    Config
	logger logr.Logger
	stdout io.Writer
	stderr io.Writer
}
