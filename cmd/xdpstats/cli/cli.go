package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/config"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/logging"
)

// CLI is the root command structure for xdpstats.
type CLI struct {
	Config  string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log     string `name:"log" help:"Log spec (e.g., 'info,reporter=debug'). Levels: ${log_levels}."`
	Quiet   bool   `name:"quiet" short:"q" help:"Only log errors."`
	PinBase string `name:"pin-base" help:"Override the bpffs pin base directory."`
	MapName string `name:"map-name" help:"Override the name of the stats map."`

	Load   LoadCmd   `cmd:"" help:"Load an XDP program and attach it to a device."`
	Unload UnloadCmd `cmd:"" help:"Detach the XDP program from a device and remove its pins."`
	Stats  StatsCmd  `cmd:"" help:"Report per-action packet and bit rates for a device."`
	List   ListCmd   `cmd:"" help:"List devices with a pinned stats map."`

	// Out receives command output; logs go to Err.
	Out io.Writer `kong:"-"`
	Err io.Writer `kong:"-"`

	// NewKernel builds the kernel adapter. Nil selects cilium/ebpf.
	NewKernel func(logger *slog.Logger) interpreter.Kernel `kong:"-"`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("xdpstats"),
		kong.Description("Attach XDP stats programs and report per-action rates."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
			"log_levels":          strings.Join(logging.LevelNames(), ", "),
		},
	}
}

// Main runs the CLI with output on stdout and stderr and returns the
// process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	c := &CLI{Out: stdout, Err: stderr}
	return c.Main(args)
}

// Main parses args, runs the selected command and returns the process
// exit code. SIGINT and SIGTERM cancel the command's context.
func (c *CLI) Main(args []string, opts ...kong.Option) int {
	stderr := c.Err
	if stderr == nil {
		stderr = os.Stderr
	}

	opts = append(KongOptions(), append([]kong.Option{kong.Writers(c.out(), stderr)}, opts...)...)
	parser, err := kong.New(c, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailure
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitOption
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(c); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCode(err)
	}
	return ExitOK
}

// LoadConfig loads the config file and applies the global overrides.
func (c *CLI) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}
	if c.PinBase != "" {
		cfg.Pin.BaseDir = c.PinBase
	}
	if c.MapName != "" {
		cfg.Pin.MapName = c.MapName
	}
	if _, err := cfg.Pin.Layout(); err != nil {
		return cfg, &xdpstats.OptionError{Option: "pin-base", Reason: err.Error()}
	}
	return cfg, nil
}

// Logger creates the logger for a command. Logs always go to stderr
// so that stdout carries only command output.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	errOut := c.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	return logging.New(logging.Options{
		CLISpec:    c.Log,
		EnvSpec:    os.Getenv(logging.EnvVar),
		ConfigSpec: cfg.Logging.ToSpec(),
		Quiet:      c.Quiet,
		Format:     format,
		Output:     errOut,
	})
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes p to Out. A short write without an error is
// reported as io.ErrShortWrite.
func (c *CLI) WriteOut(p []byte) error {
	n, err := c.out().Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to Out.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats according to a format specifier and writes to Out.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
