package cli

// The command-line front end. Every sub-command loads one or more maps from
// disk and prints the answers to stdout in the requested format. Errors are
// printed to stderr through the logger and turned into an exit code.

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracemap/tracemap/internal/exitcode"
	"github.com/tracemap/tracemap/internal/logger"
	"github.com/tracemap/tracemap/pkg/tracemap"
)

type options struct {
	format    string
	verbose   bool
	color     string
	bias      string
	mapURL    string
	strict     bool
	errorLimit int
	jobs       int
	cacheSize  int
}

type app struct {
	stdin  io.Reader
	stdout io.Writer

	newLog func(logger.StderrOptions) logger.Log
	log    logger.Log
	hasLog bool

	zap     *zap.Logger
	options options
}

// Run executes the command line in osArgs (without the program name) and
// returns the process exit code
func Run(osArgs []string) int {
	return run(osArgs, os.Stdin, os.Stdout, logger.NewStderrLog)
}

func run(osArgs []string, stdin io.Reader, stdout io.Writer, newLog func(logger.StderrOptions) logger.Log) int {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		newLog: newLog,
		zap:    zap.NewNop(),
	}

	root := a.rootCommand()
	root.SetArgs(osArgs)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stdout)

	err := root.Execute()
	if err != nil {
		a.logger().AddMsg(logger.Msg{Kind: logger.Error, Text: err.Error()})
	}
	if a.hasLog {
		a.log.Done()
	}
	a.zap.Sync()
	return exitcode.Get(err)
}

// The log is created lazily because "--color" isn't known until the flags
// have been parsed
func (a *app) logger() logger.Log {
	if !a.hasLog {
		options := logger.StderrOptions{
			ErrorLimit: max(a.options.errorLimit, 0),
			LogLevel:   logger.LevelInfo,
		}
		switch a.options.color {
		case "always":
			options.Color = logger.ColorAlways
		case "never":
			options.Color = logger.ColorNever
		}
		a.log = a.newLog(options)
		a.hasLog = true
	}
	return a.log
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tracemap",
		Short: "Look up positions in source maps",
		Long: `Look up positions in source maps.

Generated lines are 1-based and columns are 0-based, written as "line:column".
Sectioned maps are flattened before any lookup.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.options.format, "format", "text", "Output format (text, json, or yaml)")
	flags.BoolVarP(&a.options.verbose, "verbose", "v", false, "Print debug diagnostics to stderr")
	flags.StringVar(&a.options.color, "color", "auto", "Use color in error messages (auto, always, or never)")
	flags.StringVar(&a.options.bias, "bias", "", "Search bias when there's no exact match (glb or lub)")
	flags.StringVar(&a.options.mapURL, "map-url", "", "Where the map lives, for resolving its sources (default: the map's path)")
	flags.BoolVar(&a.options.strict, "strict", false, "Exit with a failure code if any position has no mapping")
	flags.IntVar(&a.options.errorLimit, "error-limit", 10, "Stop printing errors after this many (0 for no limit)")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Set(err, exitcode.Usage)
	})

	root.AddCommand(
		a.originalCommand(),
		a.generatedCommand(),
		a.allGeneratedCommand(),
		a.mappingsCommand(),
		a.flattenCommand(),
		a.symbolicateCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	switch a.options.format {
	case "text", "json", "yaml":
	default:
		return usageErrorf("invalid format %q (expected text, json, or yaml)", a.options.format)
	}

	switch a.options.color {
	case "auto", "always", "never":
	default:
		return usageErrorf("invalid color %q (expected auto, always, or never)", a.options.color)
	}

	if _, err := a.searchBias(); err != nil {
		return err
	}

	if a.options.errorLimit < 0 {
		return usageErrorf("invalid error limit %d", a.options.errorLimit)
	}

	if a.options.verbose {
		config := zap.NewDevelopmentConfig()
		config.OutputPaths = []string{"stderr"}
		log, err := config.Build()
		if err != nil {
			return errors.Wrap(err, "create debug logger")
		}
		a.zap = log
	}
	return nil
}

// The zero bias lets every query pick its own default
func (a *app) searchBias() (tracemap.Bias, error) {
	switch a.options.bias {
	case "":
		return 0, nil
	case "glb":
		return tracemap.GreatestLowerBound, nil
	case "lub":
		return tracemap.LeastUpperBound, nil
	}
	return 0, usageErrorf("invalid bias %q (expected glb or lub)", a.options.bias)
}

func (a *app) loadMap(path string) (*tracemap.TraceMap, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %q", path)
	}

	mapURL := a.options.mapURL
	if mapURL == "" && path != "-" {
		mapURL = path
	}

	tm, err := tracemap.Parse(data, tracemap.Options{MapURL: mapURL, Logger: a.zap})
	if err != nil {
		return nil, exitcode.Set(errors.Wrapf(err, "load %q", path), exitcode.InvalidMap)
	}

	a.zap.Debug("loaded source map",
		zap.String("path", path),
		zap.Int("sources", len(tm.Sources)),
		zap.Int("names", len(tm.Names)))
	return tm, nil
}

// Positions on the command line look like "line:column"
func parsePosition(text string) (int, int, error) {
	line, column, ok := strings.Cut(text, ":")
	if ok {
		l, lineErr := strconv.Atoi(line)
		c, columnErr := strconv.Atoi(column)
		if lineErr == nil && columnErr == nil {
			return l, c, nil
		}
	}
	return 0, 0, usageErrorf("invalid position %q (expected line:column)", text)
}

func usageErrorf(format string, args ...interface{}) error {
	return exitcode.Set(errors.Errorf(format, args...), exitcode.Usage)
}

// Wraps a cobra argument check so mistakes count as usage errors
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return exitcode.Set(err, exitcode.Usage)
		}
		return nil
	}
}

func (a *app) checkStrict(unmapped int) error {
	if a.options.strict && unmapped > 0 {
		return exitcode.Set(errors.Errorf("%d %s had no mapping", unmapped, plural("position", unmapped)), exitcode.Unmapped)
	}
	return nil
}

func plural(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
