package cli

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tracemap/tracemap/pkg/tracemap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (p position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type sourcePosition struct {
	Source string `json:"source" yaml:"source"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (p sourcePosition) String() string {
	text := fmt.Sprintf("%s:%d:%d", p.Source, p.Line, p.Column)
	if p.Name != "" {
		text += " " + p.Name
	}
	return text
}

func originalPosition(m tracemap.OriginalMapping) *sourcePosition {
	if !m.Found() {
		return nil
	}
	return &sourcePosition{Source: m.Source, Line: m.Line, Column: m.Column, Name: m.Name}
}

// Records with a nil original or generated side were unmapped
type originalRecord struct {
	Generated position        `json:"generated" yaml:"generated"`
	Original  *sourcePosition `json:"original" yaml:"original"`
}

type generatedRecord struct {
	Original  sourcePosition `json:"original" yaml:"original"`
	Generated *position      `json:"generated" yaml:"generated"`
}

type allGeneratedRecord struct {
	Original  sourcePosition `json:"original" yaml:"original"`
	Generated []position     `json:"generated" yaml:"generated"`
}

type mappingRecord struct {
	Generated position        `json:"generated" yaml:"generated"`
	Original  *sourcePosition `json:"original,omitempty" yaml:"original,omitempty"`
}

const unmapped = "(unmapped)"

func (r originalRecord) text() string {
	if r.Original == nil {
		return fmt.Sprintf("%v -> %s", r.Generated, unmapped)
	}
	return fmt.Sprintf("%v -> %v", r.Generated, *r.Original)
}

func (r generatedRecord) text() string {
	if r.Generated == nil {
		return fmt.Sprintf("%v -> %s", r.Original, unmapped)
	}
	return fmt.Sprintf("%v -> %v", r.Original, *r.Generated)
}

func (r allGeneratedRecord) text() string {
	if len(r.Generated) == 0 {
		return fmt.Sprintf("%v -> %s", r.Original, unmapped)
	}
	texts := make([]string, len(r.Generated))
	for i, p := range r.Generated {
		texts[i] = p.String()
	}
	return fmt.Sprintf("%v -> %s", r.Original, strings.Join(texts, ", "))
}

func (r mappingRecord) text() string {
	if r.Original == nil {
		return r.Generated.String()
	}
	return fmt.Sprintf("%v -> %v", r.Generated, *r.Original)
}

type texter interface {
	text() string
}

// writeRecords prints one line per record in text mode, or the whole list as
// a single document otherwise
func writeRecords[T texter](w io.Writer, format string, records []T) error {
	if records == nil {
		records = []T{}
	}

	switch format {
	case "json":
		return writeJSON(w, records)

	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(records); err != nil {
			return errors.Wrap(err, "write YAML")
		}
		return encoder.Close()
	}

	var sb strings.Builder
	for _, record := range records {
		sb.WriteString(record.text())
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errors.Wrap(err, "write JSON")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// JSON is already YAML, so the document is parsed as YAML to keep its key
// order and then printed in block style. Scalars lose their JSON quotes and
// the encoder quotes again only the strings that would otherwise read as
// another type.
func writeYAMLDocument(w io.Writer, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "convert to YAML")
	}
	blockStyle(&doc)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return errors.Wrap(err, "write YAML")
	}
	return encoder.Close()
}

func blockStyle(node *yaml.Node) {
	node.Style &^= yaml.FlowStyle
	if node.Kind == yaml.ScalarNode {
		node.Style &^= yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}
