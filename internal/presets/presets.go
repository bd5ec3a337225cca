package presets

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// ErrUnknownPreset is returned by Filter for names that are not defined
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is one named flat view filter as written in YAML
type Preset struct {
	Kinds            []string `yaml:"kinds" json:"kinds,omitempty"`
	Text             string   `yaml:"text" json:"text,omitempty"`
	HideUnclassified bool     `yaml:"hide_unclassified" json:"hide_unclassified,omitempty"`
	Notes            string   `yaml:"notes" json:"notes,omitempty"`
}

// Presets maps preset names to filters
type Presets struct {
	Presets map[string]Preset `yaml:"presets"`

	filters map[string]apexlog.Filter
}

// Defaults returns the presets available without a file
func Defaults() *Presets {
	p := &Presets{
		Presets: map[string]Preset{
			"errors": {
				Kinds: []string{"EXCEPTION_THROWN", "FATAL_ERROR", "VALIDATION_RULE"},
				Notes: "exceptions, fatal errors and validation results",
			},
			"soql": {
				Kinds: []string{"SOQL_BEGIN", "SOQL_END"},
			},
			"debug": {
				Kinds: []string{"USER_DEBUG"},
			},
			"calls": {
				Kinds: []string{"CODE_UNIT_STARTED", "CODE_UNIT_FINISHED", "METHOD_ENTRY", "METHOD_EXIT", "CONSTRUCTOR_ENTRY", "CONSTRUCTOR_EXIT"},
			},
			"classified": {
				HideUnclassified: true,
			},
		},
	}
	// built-in presets are known to compile
	if err := p.compile(); err != nil {
		panic(err)
	}
	return p
}

// Load reads presets.yaml; file presets override defaults of the same name.
// An empty path returns the defaults.
func Load(path string) (*Presets, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}
	return Parse(data)
}

// Parse decodes presets YAML on top of the defaults
func Parse(data []byte) (*Presets, error) {
	var file Presets
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	p := Defaults()
	for name, preset := range file.Presets {
		p.Presets[name] = preset
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Presets) compile() error {
	p.filters = make(map[string]apexlog.Filter, len(p.Presets))
	for name, preset := range p.Presets {
		f := apexlog.Filter{
			Text:             preset.Text,
			HideUnclassified: preset.HideUnclassified,
		}
		for _, k := range preset.Kinds {
			kind, err := domain.ParseEventKind(k)
			if err != nil {
				return fmt.Errorf("preset %q: %w", name, err)
			}
			f.Kinds = append(f.Kinds, kind)
		}
		p.filters[name] = f
	}
	return nil
}

// Filter returns the compiled filter for a preset
func (p *Presets) Filter(name string) (apexlog.Filter, error) {
	f, ok := p.filters[name]
	if !ok {
		return apexlog.Filter{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return f, nil
}

// Names returns all preset names sorted
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.Presets))
	for name := range p.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
