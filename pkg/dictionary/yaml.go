package dictionary

import (
	"github.com/praetorian-inc/kwmatch/pkg/types"
	"gopkg.in/yaml.v3"
)

// yamlDictionary is one entry of a dictionaries file.
type yamlDictionary struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords"`
	Replacement string   `yaml:"replacement,omitempty"`
	Categories  []string `yaml:"categories,omitempty"`
	References  []string `yaml:"references,omitempty"`
}

// yamlFile is the top-level structure: a "dictionaries" array.
type yamlFile struct {
	Dictionaries []yamlDictionary `yaml:"dictionaries"`
}

func (yd yamlDictionary) convert() *types.Dictionary {
	d := &types.Dictionary{
		ID:          yd.ID,
		Name:        yd.Name,
		Description: yd.Description,
		Keywords:    yd.Keywords,
		Replacement: yd.Replacement,
		Categories:  yd.Categories,
		References:  yd.References,
	}
	d.StructuralID = d.ComputeStructuralID()
	return d
}

// Marshal renders dictionaries in the format Load reads.
func Marshal(dicts []*types.Dictionary) ([]byte, error) {
	file := yamlFile{Dictionaries: make([]yamlDictionary, 0, len(dicts))}
	for _, d := range dicts {
		file.Dictionaries = append(file.Dictionaries, yamlDictionary{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Keywords:    d.Keywords,
			Replacement: d.Replacement,
			Categories:  d.Categories,
			References:  d.References,
		})
	}
	return yaml.Marshal(file)
}
