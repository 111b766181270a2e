// cmd/aacctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"aac-io/internal/config"
	"aac-io/internal/discovery"
	"aac-io/internal/driver/aac"
	"aac-io/internal/model"
	"aac-io/internal/protocol/serial"
	"aac-io/internal/utils"
)

const usage = `Usage: aacctl [flags] <command> [args]

Commands:
  ports                      list serial ports
  scan [<pattern>...]        probe serial ports for AAC modules
  info                       identity, firmware, unique id and uptime
  status                     OCXO and reference oscillator telemetry
  backlight on|off|get       switch or query the backlight
  backlight pwm <percent>    set the backlight intensity
  backlight timeout [<s>]    query or store the forced-on timeout

Flags:
`

var errUsage = errors.New("invalid arguments")

// Application represents the command line application
type Application struct {
	config *config.Config
	logger *zap.Logger
	out    io.Writer

	// Test seams
	connOptions []aac.Option
	portLister  func() ([]serial.PortInfo, error)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "aacctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("aacctl", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	configPath := flags.StringP("config", "c", "", "config file (default ./aac-io.yaml)")
	flags.StringP("port", "p", "", "serial port of the module, e.g. COM3 or /dev/ttyACM0")
	flags.String("log-dir", "", "directory of the daily instrument trace file")
	flags.String("log-level", "", "diagnostic log level (debug, info, warn, error)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	v := viper.New()
	for key, flag := range map[string]string{
		"serial.port":     "port",
		"trace.directory": "log-dir",
		"logging.level":   "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	cfg, err := config.LoadWith(v, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	app := &Application{config: cfg, logger: logger, out: out}

	if flags.NArg() == 0 {
		flags.Usage()
		return errUsage
	}
	return app.Execute(flags.Arg(0), flags.Args()[1:])
}

// Execute runs one command
func (a *Application) Execute(command string, args []string) error {
	switch command {
	case "ports":
		return a.ports()
	case "scan":
		return a.scan(args)
	case "info":
		return a.session(a.info)
	case "status":
		return a.session(a.status)
	case "backlight":
		action, err := a.backlight(args)
		if err != nil {
			return err
		}
		return a.session(action)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *Application) session(fn func(*aac.Connection) error) error {
	if a.config.Serial.Port == "" {
		return fmt.Errorf("%w: no serial port configured, use --port", errUsage)
	}

	conn := aac.New(a.config, a.logger, a.connOptions...)
	return conn.Session(a.config.Serial.Port, fn, aac.WithLogDirectory(a.config.Trace.Directory))
}

func (a *Application) ports() error {
	list := serial.ListPorts
	if a.portLister != nil {
		list = a.portLister
	}

	ports, err := list()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(a.out, "No serial ports found")
		return nil
	}

	for _, p := range ports {
		if p.IsUSB {
			fmt.Fprintf(a.out, "%-16s USB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Fprintln(a.out, p.Name)
		}
	}
	return nil
}

func (a *Application) scan(patterns []string) error {
	opts := []discovery.Option{discovery.WithConnectionOptions(a.connOptions...)}
	if a.portLister != nil {
		opts = append(opts, discovery.WithPortLister(a.portLister))
	}

	scanner := discovery.NewScanner(&discovery.Config{PortPatterns: patterns}, a.config, a.logger, opts...)
	modules, err := scanner.Scan(context.Background())
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		fmt.Fprintln(a.out, "No AAC module found")
		return nil
	}

	for _, m := range modules {
		fmt.Fprintf(a.out, "%-16s %s %s\n", m.Port.Name, m.Identity, m.Version)
	}
	return nil
}

func (a *Application) info(conn *aac.Connection) error {
	info, err := conn.DeviceInfo()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Port:      %s\n", info.Port)
	fmt.Fprintf(a.out, "Identity:  %s\n", info.Identity)
	fmt.Fprintf(a.out, "Firmware:  %s\n", info.FirmwareVersion)
	fmt.Fprintf(a.out, "Unique ID: %s\n", info.UniqueID)
	fmt.Fprintf(a.out, "Uptime:    %s\n", info.Uptime)
	return nil
}

func (a *Application) status(conn *aac.Connection) error {
	for _, ch := range []model.Channel{model.OCXO1, model.OCXO2, model.OCXO3} {
		s, err := conn.OscillatorStatus(ch)
		if err != nil {
			return err
		}

		mhz := float64(model.NominalFrequency[ch]) / 1e6
		if s == nil {
			fmt.Fprintf(a.out, "%s (%g MHz): invalid response\n", ch, mhz)
			continue
		}
		fmt.Fprintf(a.out, "%s (%g MHz): %.2f V %.3f A %.2f °C %s\n",
			ch, mhz, s.Voltage, s.Current, s.Temperature, lockState(s.IsLocked))
	}

	ref, err := conn.ReferenceStatus()
	if err != nil {
		return err
	}

	mhz := float64(model.ReferenceFrequency) / 1e6
	if ref == nil {
		fmt.Fprintf(a.out, "REFOCXO (%g MHz): invalid response\n", mhz)
		return nil
	}

	source := "internal"
	if ref.ExtRef {
		source = "external"
	}
	fmt.Fprintf(a.out, "REFOCXO (%g MHz): %.2f V %.3f A %.2f °C (legacy %.2f °C) %s\n",
		mhz, ref.Voltage, ref.Current, ref.Temperature, ref.LegacyTemperature, source)
	return nil
}

func lockState(locked bool) string {
	if locked {
		return "locked"
	}
	return "unlocked"
}

func (a *Application) backlight(args []string) (func(*aac.Connection) error, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: backlight needs an action", errUsage)
	}

	switch args[0] {
	case "on":
		return (*aac.Connection).BacklightOn, nil
	case "off":
		return (*aac.Connection).BacklightOff, nil
	case "get":
		return a.showBacklight, nil
	case "pwm":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: backlight pwm needs a percentage", errUsage)
		}
		percent, err := strconv.Atoi(args[1])
		if err != nil || percent < 0 || percent > 100 {
			return nil, fmt.Errorf("%w: intensity must be 0-100, got %q", errUsage, args[1])
		}
		return func(c *aac.Connection) error { return c.SetBacklightIntensity(percent) }, nil
	case "timeout":
		if len(args) == 1 {
			return a.showBacklight, nil
		}
		seconds, err := strconv.Atoi(args[1])
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("%w: timeout must be a non-negative number of seconds, got %q", errUsage, args[1])
		}
		return func(c *aac.Connection) error { return c.SetBacklightTimeout(seconds) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown backlight action %q", errUsage, args[0])
	}
}

func (a *Application) showBacklight(conn *aac.Connection) error {
	status, err := conn.Backlight()
	if err != nil {
		return err
	}

	state := "off"
	if status.On {
		state = "on"
	}
	fmt.Fprintf(a.out, "Backlight: %s\n", state)
	fmt.Fprintf(a.out, "Intensity: %d %%\n", status.Intensity)
	fmt.Fprintf(a.out, "Timeout:   %d s\n", status.Timeout)
	return nil
}
