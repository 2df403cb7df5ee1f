package extract

import (
	"context"
	"iter"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FileExtractor reads snapshots from a YAML or JSON file. The document is
// either a sequence of listings or a mapping with an "items" sequence.
type FileExtractor struct {
	path string
}

// NewFileExtractor returns an extractor for the file at path.
func NewFileExtractor(path string) *FileExtractor {
	return &FileExtractor{path: path}
}

// Extract loads the whole file up front. Listings that fail to decode are
// yielded as errors; the rest of the file is still read.
func (f *FileExtractor) Extract(ctx context.Context) (iter.Seq2[RawSnapshot, error], error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", f.path)
	}

	items, err := itemNodes(data)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse %s", f.path)
	}

	return func(yield func(RawSnapshot, error) bool) {
		for i, n := range items {
			if err := ctx.Err(); err != nil {
				yield(RawSnapshot{}, err)
				return
			}
			var raw RawSnapshot
			if err := n.Decode(&raw); err != nil {
				if !yield(RawSnapshot{}, eris.Wrapf(err, "extract: item %d (line %d)", i, n.Line)) {
					return
				}
				continue
			}
			if !yield(raw, nil) {
				return
			}
		}
	}, nil
}

func itemNodes(data []byte) ([]*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, eris.New("unexpected document")
	}

	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		var items *yaml.Node
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "items" {
				items = root.Content[i+1]
				break
			}
		}
		if items == nil {
			return nil, eris.New(`missing "items"`)
		}
		root = items
	}
	if root.Kind != yaml.SequenceNode {
		return nil, eris.New("listings must be a sequence")
	}
	return root.Content, nil
}
