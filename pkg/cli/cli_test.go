package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tracemap/tracemap/internal/exitcode"
	"github.com/tracemap/tracemap/internal/logger"
)

// Generated line 1 has "foo" at column 0 and another mapping at column 5.
// Generated line 2 maps to the start of original line 2.
const plainMap = `{
	"version": 3,
	"file": "out.js",
	"sources": ["input.js"],
	"names": ["foo"],
	"mappings": "AAAAA,KAAK;AACL"
}`

const sectionedMap = `{
	"version": 3,
	"sections": [
		{"offset": {"line": 0, "column": 0}, "map": {"version": 3, "sources": ["a.js"], "mappings": "AAAA"}},
		{"offset": {"line": 1, "column": 0}, "map": {"version": 3, "sources": ["b.js"], "mappings": "AAAA"}}
	]
}`

func writeFile(t *testing.T, dir string, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, func(options logger.StderrOptions) logger.Log {
		return logger.NewWriterLog(func(text string) { stderr.WriteString(text) }, logger.TerminalInfo{}, options)
	})
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestOriginal(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "original", "--map-url=out.js.map", path, "1:0", "1:7", "2:3", "3:0")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "1:0 -> input.js:1:0 foo\n"+
		"1:7 -> input.js:1:5\n"+
		"2:3 -> input.js:2:0\n"+
		"3:0 -> (unmapped)\n", r.stdout)
	assert.Empty(t, r.stderr)
}

func TestOriginalLeastUpperBound(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "original", "--bias=lub", "--map-url=out.js.map", path, "1:1", "1:6")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "1:1 -> input.js:1:5\n1:6 -> (unmapped)\n", r.stdout)
}

func TestOriginalStrict(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "original", "--strict", "--map-url=out.js.map", path, "1:0", "3:0")
	assert.Equal(t, exitcode.Unmapped, r.code)
	assert.Equal(t, "1:0 -> input.js:1:0 foo\n3:0 -> (unmapped)\n", r.stdout)
	assert.Contains(t, r.stderr, "error: 1 position had no mapping")
}

func TestOriginalJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "original", "--format=json", "--map-url=out.js.map", path, "1:0", "3:0")
	require.Equal(t, exitcode.Success, r.code, r.stderr)

	var records []originalRecord
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &records))
	assert.Equal(t, []originalRecord{
		{Generated: position{1, 0}, Original: &sourcePosition{Source: "input.js", Line: 1, Column: 0, Name: "foo"}},
		{Generated: position{3, 0}},
	}, records)
	assert.Contains(t, r.stdout, `"original": null`)
}

func TestOriginalResolvesAgainstMapPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "out.js.map", plainMap)

	r := runCLI(t, "", "original", path, "1:0")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "1:0 -> "+dir+"/input.js:1:0 foo\n", r.stdout)
}

func TestOriginalFromStdin(t *testing.T) {
	r := runCLI(t, plainMap, "original", "-", "2:0")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "2:0 -> input.js:2:0\n", r.stdout)
}

func TestGenerated(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "generated", "--map-url=out.js.map", path, "input.js", "1:5", "1:7", "2:0")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "input.js:1:5 -> 1:5\ninput.js:1:7 -> 1:5\ninput.js:2:0 -> 2:0\n", r.stdout)

	r = runCLI(t, "", "generated", "--map-url=out.js.map", path, "missing.js", "1:0")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "missing.js:1:0 -> (unmapped)\n", r.stdout)
}

func TestGeneratedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "generated", "--format=yaml", "--map-url=out.js.map", path, "input.js", "2:0", "9:0")
	require.Equal(t, exitcode.Success, r.code, r.stderr)

	var records []generatedRecord
	require.NoError(t, yaml.Unmarshal([]byte(r.stdout), &records))
	assert.Equal(t, []generatedRecord{
		{Original: sourcePosition{Source: "input.js", Line: 2, Column: 0}, Generated: &position{2, 0}},
		{Original: sourcePosition{Source: "input.js", Line: 9, Column: 0}},
	}, records)
}

func TestAllGenerated(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "all-generated", "--map-url=out.js.map", path, "input.js", "1:0", "1:1", "1:6")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "input.js:1:0 -> 1:0\ninput.js:1:1 -> 1:5\ninput.js:1:6 -> (unmapped)\n", r.stdout)

	r = runCLI(t, "", "all-generated", "--format=json", "--map-url=out.js.map", path, "input.js", "1:6")
	require.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Contains(t, r.stdout, `"generated": []`)
}

func TestMappings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	r := runCLI(t, "", "mappings", "--map-url=out.js.map", path)
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "1:0 -> input.js:1:0 foo\n1:5 -> input.js:1:5\n2:0 -> input.js:2:0\n", r.stdout)
}

func TestFlatten(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bundle.js.map", sectionedMap)

	r := runCLI(t, "", "flatten", "--map-url=bundle.js.map", path)
	require.Equal(t, exitcode.Success, r.code, r.stderr)

	var out struct {
		Version  int      `json:"version"`
		Sources  []string `json:"sources"`
		Mappings string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &out))
	assert.Equal(t, 3, out.Version)
	assert.Equal(t, []string{"a.js", "b.js"}, out.Sources)
	assert.Equal(t, "AAAA;ACAA", out.Mappings)
}

func TestFlattenYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bundle.js.map", sectionedMap)

	r := runCLI(t, "", "flatten", "--format=yaml", "--map-url=bundle.js.map", path)
	require.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.True(t, strings.HasPrefix(r.stdout, "version: 3\n"), r.stdout)
	assert.Contains(t, r.stdout, "\nmappings: AAAA;ACAA\n")
	assert.Contains(t, r.stdout, "\n  - a.js\n")
	assert.NotContains(t, r.stdout, `"`)

	var out struct {
		Sources  []string `yaml:"sources"`
		Mappings string   `yaml:"mappings"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(r.stdout), &out))
	assert.Equal(t, []string{"a.js", "b.js"}, out.Sources)
	assert.Equal(t, "AAAA;ACAA", out.Mappings)
}

func TestWriteYAMLDocument(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeYAMLDocument(&out, []byte(`{"name": "x", "number": "3", "flag": "true", "list": [1, "a b"], "empty": []}`)))
	assert.Equal(t, `name: x
number: "3"
flag: "true"
list:
  - 1
  - a b
empty: []
`, out.String())
}

func TestSymbolicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "out.js.map", plainMap)

	trace := "Error: boom\n" +
		"    at foo (" + dir + "/out.js:1:7)\n" +
		"    at bar (" + dir + "/other.js:3:1)\n" +
		"    at " + dir + "/out.js:2:9\n"

	r := runCLI(t, trace, "symbolicate", "--jobs=2")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, "Error: boom\n"+
		"    at foo ("+dir+"/input.js:1:6)\n"+
		"    at bar ("+dir+"/other.js:3:1)\n"+
		"    at "+dir+"/input.js:2:1\n", r.stdout)

	// The missing map is only reported once
	assert.Equal(t, 1, strings.Count(r.stderr, "other.js.map: warning:"), r.stderr)
}

func TestSymbolicateFileAndSmallCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.js.map", plainMap)
	writeFile(t, dir, "b.js.map", plainMap)
	tracePath := writeFile(t, dir, "trace.txt",
		dir+"/a.js:1:1\n"+dir+"/b.js:1:1\n"+dir+"/a.js:2:1\n")

	r := runCLI(t, "", "symbolicate", "--cache-size=1", "--strict", tracePath)
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, dir+"/input.js:1:1\n"+dir+"/input.js:1:1\n"+dir+"/input.js:2:1\n", r.stdout)
}

func TestSymbolicateColumnsAreOneBased(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "out.js.map", plainMap)

	// Column 6 in the trace is column 5 in the map, the second mapping
	r := runCLI(t, dir+"/out.js:1:6\n", "symbolicate", "--bias=lub", "--strict")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, dir+"/input.js:1:6\n", r.stdout)

	// Column 5 is column 4, which falls back to the mapping at column 0
	r = runCLI(t, dir+"/out.js:1:5\n", "symbolicate")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, dir+"/input.js:1:1\n", r.stdout)

	// A column of 0 can't be 1-based but is still looked up
	r = runCLI(t, dir+"/out.js:2:0\n", "symbolicate")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, dir+"/input.js:2:1\n", r.stdout)
}

func TestSymbolicateMissingMaps(t *testing.T) {
	dir := t.TempDir()
	trace := dir + "/c.js:1:1\n" + dir + "/a.js:1:1\n" + dir + "/b.js:1:1\n"

	// Warnings come out in path order no matter which load finished first
	r := runCLI(t, trace, "symbolicate", "--jobs=3")
	assert.Equal(t, exitcode.Success, r.code, r.stderr)
	assert.Equal(t, trace, r.stdout)
	a := strings.Index(r.stderr, dir+"/a.js.map: warning:")
	b := strings.Index(r.stderr, dir+"/b.js.map: warning:")
	c := strings.Index(r.stderr, dir+"/c.js.map: warning:")
	require.True(t, a >= 0 && a < b && b < c, r.stderr)
	assert.Contains(t, r.stderr, "3 warnings\n")

	// With "--strict" they are errors, and only the first two are printed
	r = runCLI(t, trace, "symbolicate", "--jobs=3", "--strict", "--error-limit=2")
	assert.Equal(t, exitcode.InvalidMap, r.code, r.stderr)
	assert.Contains(t, r.stderr, dir+"/a.js.map: error:")
	assert.Contains(t, r.stderr, dir+"/b.js.map: error:")
	assert.NotContains(t, r.stderr, "c.js.map")
	assert.Contains(t, r.stderr, "2 errors reached (disable error limit with --error-limit=0)\n")

	r = runCLI(t, trace, "symbolicate", "--strict", "--error-limit=0")
	assert.Equal(t, exitcode.InvalidMap, r.code, r.stderr)
	assert.Contains(t, r.stderr, dir+"/c.js.map: error:")
	assert.Contains(t, r.stderr, "some source maps could not be loaded")
	assert.Contains(t, r.stderr, "4 errors\n")
}

func TestSymbolicateStrict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "out.js.map", plainMap)

	r := runCLI(t, dir+"/out.js:7:0\n", "symbolicate", "--strict")
	assert.Equal(t, exitcode.Unmapped, r.code)
	assert.Equal(t, dir+"/out.js:7:0\n", r.stdout)
}

func TestFindFrames(t *testing.T) {
	frames := findFrames("at f (dist/out.js:12:345) and https://example.com/x.js:1:2")
	require.Len(t, frames, 2)
	assert.Equal(t, frame{start: 6, end: 24, file: "dist/out.js", line: 12, column: 345}, frames[0])
	assert.Equal(t, "https://example.com/x.js", frames[1].file)
	assert.Equal(t, "dist/out.js.map", mapPathFor("file://dist/out.js"))
}

func TestUsageErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "out.js.map", plainMap)

	for name, args := range map[string][]string{
		"position":    {"original", path, "1-0"},
		"line":        {"original", path, "0:0"},
		"column":      {"generated", path, "input.js", "1:-1"},
		"arguments":   {"original", path},
		"format":      {"original", "--format=xml", path, "1:0"},
		"bias":        {"original", "--bias=nearest", path, "1:0"},
		"color":       {"mappings", "--color=sometimes", path},
		"flag":        {"mappings", "--unknown", path},
		"cache size":  {"symbolicate", "--cache-size=0"},
		"error limit": {"mappings", "--error-limit=-1", path},
		"extra files": {"mappings", path, path},
	} {
		t.Run(name, func(t *testing.T) {
			r := runCLI(t, "", args...)
			assert.Equal(t, exitcode.Usage, r.code, r.stderr)
			assert.Contains(t, r.stderr, "error: ")
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.js.map", `{"version": 3, "mappings": 5}`)

	r := runCLI(t, "", "mappings", bad)
	assert.Equal(t, exitcode.InvalidMap, r.code)
	assert.Contains(t, r.stderr, "invalid source map")

	r = runCLI(t, "", "mappings", filepath.Join(dir, "missing.js.map"))
	assert.Equal(t, exitcode.Failure, r.code)
	assert.Contains(t, r.stderr, "missing.js.map")
}
