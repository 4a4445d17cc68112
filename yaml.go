package resx

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/meigma/resx/producers/file"
	"github.com/meigma/resx/resource"
)

// configYAML is the on-disk configuration shape:
//
//	hash: sha256
//	node: alice@n1
//	access:
//	  - "**/*.txt"
//	  - glob: "/srv/**"
//	    node: bob@n2
//	  - regexp: "^/tmp/.*"
type configYAML struct {
	Hash   string            `yaml:"hash"`
	Node   string            `yaml:"node"`
	Access []accessEntryYAML `yaml:"access"`
}

type accessEntryYAML struct {
	Glob   string `yaml:"glob"`
	Regexp string `yaml:"regexp"`
	Node   string `yaml:"node"`
}

// UnmarshalYAML accepts either a bare glob string or the mapping form.
func (e *accessEntryYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Glob)
	}
	type plain accessEntryYAML
	return node.Decode((*plain)(e))
}

func (e accessEntryYAML) entry() (file.AccessEntry, error) {
	var out file.AccessEntry
	switch {
	case e.Glob != "" && e.Regexp != "":
		return out, resource.Internalf("access entry sets both glob and regexp")
	case e.Glob != "":
		g, err := file.NewAccessGlob(e.Glob)
		if err != nil {
			return out, resource.Internalf("access entry: %v", err)
		}
		out = g
	case e.Regexp != "":
		re, err := regexp.Compile(e.Regexp)
		if err != nil {
			return out, resource.Internalf("access entry: %v", err)
		}
		out = file.AccessRegexp(re)
	default:
		return out, resource.Internalf("access entry needs a glob or regexp")
	}
	if e.Node != "" {
		out = out.OnNode(e.Node)
	}
	return out, nil
}

// ParseConfig converts YAML configuration bytes into options for
// Configure.
func ParseConfig(raw []byte) ([]Option, error) {
	var cfg configYAML
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, resource.Internalf("parse config: %v", err)
	}

	var opts []Option
	if cfg.Hash != "" {
		opts = append(opts, WithHash(cfg.Hash))
	}
	if cfg.Node != "" {
		opts = append(opts, WithNode(cfg.Node))
	}
	if cfg.Access != nil {
		entries := make([]file.AccessEntry, 0, len(cfg.Access))
		for _, raw := range cfg.Access {
			entry, err := raw.entry()
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		opts = append(opts, WithAccess(entries...))
	}
	return opts, nil
}

// LoadConfig reads a YAML configuration file and applies it.
func LoadConfig(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return resource.Internalf("read config %s: %v", path, err)
	}
	opts, err := ParseConfig(raw)
	if err != nil {
		return err
	}
	Configure(opts...)
	return nil
}
