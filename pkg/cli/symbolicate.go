package cli

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracemap/tracemap/internal/exitcode"
	"github.com/tracemap/tracemap/internal/logger"
	"github.com/tracemap/tracemap/pkg/tracemap"
)

// A file reference in a stack trace, e.g. "at f (dist/out.js:12:345)". V8
// and Node print both the line and the column 1-based.
var frameRegexp = regexp.MustCompile(`((?:[A-Za-z][A-Za-z0-9+.-]*://)?[^\s():]+):(\d+):(\d+)`)

type frame struct {
	start, end int
	file       string
	line       int
	column     int
}

func findFrames(text string) []frame {
	var frames []frame
	for _, match := range frameRegexp.FindAllStringSubmatchIndex(text, -1) {
		line, lineErr := strconv.Atoi(text[match[4]:match[5]])
		column, columnErr := strconv.Atoi(text[match[6]:match[7]])
		if lineErr != nil || columnErr != nil {
			continue
		}
		frames = append(frames, frame{
			start:  match[0],
			end:    match[1],
			file:   text[match[2]:match[3]],
			line:   line,
			column: column,
		})
	}
	return frames
}

// Generated files are expected to have their map next to them
func mapPathFor(file string) string {
	return strings.TrimPrefix(file, "file://") + ".map"
}

func (a *app) symbolicateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbolicate [file]",
		Short: "Rewrite the file positions in a stack trace to original positions",
		Long: `Rewrite the file positions in a stack trace to original positions.

Every "file:line:column" reference is looked up in "file.map". Columns in a
stack trace are 1-based, the same as lines, and the rewritten references use
the same convention. References without a readable map are left alone, which
is a warning, or an error with "--strict". The trace is read from stdin when
no file is given.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = a.stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrapf(err, "open %q", args[0])
				}
				defer f.Close()
				input = f
			}

			data, err := io.ReadAll(input)
			if err != nil {
				return errors.Wrap(err, "read stack trace")
			}
			return a.symbolicate(string(data))
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&a.options.jobs, "jobs", 8, "How many maps to load at once")
	flags.IntVar(&a.options.cacheSize, "cache-size", 64, "How many loaded maps to keep in memory")
	return cmd
}

type mapCache struct {
	a     *app
	cache *lru.Cache[string, *tracemap.TraceMap]

	// Where load failures are reported
	log logger.Log

	mutex  sync.Mutex
	failed map[string]bool
}

func newMapCache(a *app, size int) (*mapCache, error) {
	cache, err := lru.NewWithEvict(size, func(path string, _ *tracemap.TraceMap) {
		a.zap.Debug("evicted source map", zap.String("path", path))
	})
	if err != nil {
		return nil, usageErrorf("invalid cache size %d", size)
	}
	return &mapCache{a: a, cache: cache, log: logger.NewDeferLog(), failed: make(map[string]bool)}, nil
}

// get loads the map on a miss. A map that can't be loaded is reported once and
// never tried again.
func (c *mapCache) get(path string) (*tracemap.TraceMap, bool) {
	if tm, ok := c.cache.Get(path); ok {
		return tm, true
	}

	c.mutex.Lock()
	failed := c.failed[path]
	c.mutex.Unlock()
	if failed {
		return nil, false
	}

	tm, err := c.a.loadMap(path)
	if err != nil {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if !c.failed[path] {
			c.failed[path] = true
			kind := logger.Warning
			if c.a.options.strict {
				kind = logger.Error
			}
			c.log.AddMsg(logger.Msg{
				Kind:     kind,
				Text:     err.Error(),
				Location: &logger.MsgLocation{File: path},
			})
		}
		return nil, false
	}

	c.cache.Add(path, tm)
	return tm, true
}

func (a *app) symbolicate(text string) error {
	lines := strings.SplitAfter(text, "\n")
	framesByLine := make([][]frame, len(lines))
	var paths []string
	seen := make(map[string]bool)

	for i, line := range lines {
		framesByLine[i] = findFrames(line)
		for _, f := range framesByLine[i] {
			if path := mapPathFor(f.file); !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}

	cache, err := newMapCache(a, a.options.cacheSize)
	if err != nil {
		return err
	}

	// Load everything up front in parallel. Lookups below still load on a
	// miss in case the cache was too small to hold every map.
	var group errgroup.Group
	if a.options.jobs > 0 {
		group.SetLimit(a.options.jobs)
	}
	for _, path := range paths {
		path := path
		group.Go(func() error {
			cache.get(path)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	// The loaders finish in any order. Their messages come out sorted by path.
	for _, msg := range cache.log.Done() {
		a.logger().AddMsg(msg)
	}
	cache.log = a.logger()

	out := bufio.NewWriter(a.stdout)
	missing := 0
	for i, line := range lines {
		last := 0
		for _, f := range framesByLine[i] {
			replacement, ok := a.symbolicateFrame(cache, f)
			if !ok {
				missing++
				continue
			}
			out.WriteString(line[last:f.start])
			out.WriteString(replacement)
			last = f.end
		}
		out.WriteString(line[last:])
	}
	if err := out.Flush(); err != nil {
		return err
	}

	a.zap.Debug("symbolicated stack trace",
		zap.Int("lines", len(lines)),
		zap.Int("maps", len(paths)),
		zap.Int("unmapped", missing))

	if a.options.strict && cache.log.HasErrors() {
		return exitcode.Set(errors.New("some source maps could not be loaded"), exitcode.InvalidMap)
	}
	return a.checkStrict(missing)
}

func (a *app) symbolicateFrame(cache *mapCache, f frame) (string, bool) {
	tm, ok := cache.get(mapPathFor(f.file))
	if !ok {
		return "", false
	}

	column := f.column - 1
	if column < 0 {
		column = 0
	}

	bias, _ := a.searchBias()
	found, err := tm.OriginalPositionFor(tracemap.Needle{Line: f.line, Column: column, Bias: bias})
	if err != nil || !found.Found() {
		return "", false
	}

	return found.Source + ":" + strconv.Itoa(found.Line) + ":" + strconv.Itoa(found.Column+1), true
}
