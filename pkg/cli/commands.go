package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tracemap/tracemap/internal/exitcode"
	"github.com/tracemap/tracemap/pkg/tracemap"
)

// Bad positions are the user's fault
func queryError(err error) error {
	if errors.Is(err, tracemap.ErrInvalidArgument) {
		return exitcode.Set(err, exitcode.Usage)
	}
	return err
}

func (a *app) originalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "original <map> <line:column>...",
		Short: "Find the original position of each generated position",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := a.loadMap(args[0])
			if err != nil {
				return err
			}
			bias, _ := a.searchBias()
			tracer := tm.Tracer()

			records := make([]originalRecord, 0, len(args)-1)
			missing := 0
			for _, arg := range args[1:] {
				line, column, err := parsePosition(arg)
				if err != nil {
					return err
				}
				found, err := tracer.OriginalPositionFor(tracemap.Needle{Line: line, Column: column, Bias: bias})
				if err != nil {
					return queryError(err)
				}
				record := originalRecord{
					Generated: position{Line: line, Column: column},
					Original:  originalPosition(found),
				}
				if record.Original == nil {
					missing++
				}
				records = append(records, record)
			}

			if err := writeRecords(a.stdout, a.options.format, records); err != nil {
				return err
			}
			return a.checkStrict(missing)
		},
	}
}

func (a *app) generatedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generated <map> <source> <line:column>...",
		Short: "Find the generated position of each original position",
		Args:  usageArgs(cobra.MinimumNArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := a.loadMap(args[0])
			if err != nil {
				return err
			}
			bias, _ := a.searchBias()
			source := args[1]
			tracer := tm.Tracer()

			records := make([]generatedRecord, 0, len(args)-2)
			missing := 0
			for _, arg := range args[2:] {
				line, column, err := parsePosition(arg)
				if err != nil {
					return err
				}
				found, err := tracer.GeneratedPositionFor(tracemap.SourceNeedle{Source: source, Line: line, Column: column, Bias: bias})
				if err != nil {
					return queryError(err)
				}
				record := generatedRecord{Original: sourcePosition{Source: source, Line: line, Column: column}}
				if found.Found() {
					record.Generated = &position{Line: found.Line, Column: found.Column}
				} else {
					missing++
				}
				records = append(records, record)
			}

			if err := writeRecords(a.stdout, a.options.format, records); err != nil {
				return err
			}
			return a.checkStrict(missing)
		},
	}
}

func (a *app) allGeneratedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all-generated <map> <source> <line:column>...",
		Short: "Find every generated position of each original position",
		Args:  usageArgs(cobra.MinimumNArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := a.loadMap(args[0])
			if err != nil {
				return err
			}
			bias, _ := a.searchBias()
			source := args[1]
			tracer := tm.Tracer()

			records := make([]allGeneratedRecord, 0, len(args)-2)
			missing := 0
			for _, arg := range args[2:] {
				line, column, err := parsePosition(arg)
				if err != nil {
					return err
				}
				found, err := tracer.AllGeneratedPositionsFor(tracemap.SourceNeedle{Source: source, Line: line, Column: column, Bias: bias})
				if err != nil {
					return queryError(err)
				}
				record := allGeneratedRecord{
					Original:  sourcePosition{Source: source, Line: line, Column: column},
					Generated: make([]position, 0, len(found)),
				}
				for _, g := range found {
					record.Generated = append(record.Generated, position{Line: g.Line, Column: g.Column})
				}
				if len(found) == 0 {
					missing++
				}
				records = append(records, record)
			}

			if err := writeRecords(a.stdout, a.options.format, records); err != nil {
				return err
			}
			return a.checkStrict(missing)
		},
	}
}

func (a *app) mappingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mappings <map>",
		Short: "List every mapping in generated order",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := a.loadMap(args[0])
			if err != nil {
				return err
			}

			var records []mappingRecord
			tm.EachMapping(func(m tracemap.Mapping) {
				record := mappingRecord{Generated: position{Line: m.GeneratedLine, Column: m.GeneratedColumn}}
				if m.HasSource {
					record.Original = &sourcePosition{Source: m.Source, Line: m.OriginalLine, Column: m.OriginalColumn, Name: m.Name}
				}
				records = append(records, record)
			})
			return writeRecords(a.stdout, a.options.format, records)
		},
	}
}

func (a *app) flattenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flatten <map>",
		Short: "Merge a sectioned map into a plain one",
		Long: `Merge a sectioned map into a plain one. A plain map is written back out
with its mappings re-encoded. The output is JSON unless "--format=yaml" is
passed.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := a.loadMap(args[0])
			if err != nil {
				return err
			}

			data, err := tm.MarshalJSON()
			if err != nil {
				return err
			}

			if a.options.format == "yaml" {
				return writeYAMLDocument(a.stdout, data)
			}
			_, err = a.stdout.Write(append(data, '\n'))
			return err
		},
	}
}
