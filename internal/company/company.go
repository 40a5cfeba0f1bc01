// Package company provides the static company directory mapping a company
// identifier to the retrieval index routing parameters.
package company

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Company is one directory entry.
type Company struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Ticker     string   `yaml:"ticker"`
	RoutingKey string   `yaml:"routing_key"`
	Aliases    []string `yaml:"aliases"`
}

// Directory is the loaded company lookup table. It is built once at
// startup and read-only afterwards.
type Directory struct {
	companies []Company
	byKey     map[string]*Company
}

// Load reads the company directory from a YAML file.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "company: read directory %s", path)
	}
	return Parse(data)
}

// Parse builds a Directory from raw YAML.
func Parse(data []byte) (*Directory, error) {
	var doc struct {
		Companies []Company `yaml:"companies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "company: parse directory")
	}

	d := &Directory{
		companies: doc.Companies,
		byKey:     make(map[string]*Company),
	}
	for i := range d.companies {
		c := &d.companies[i]
		if c.RoutingKey == "" {
			return nil, eris.Errorf("company: %s has no routing_key", c.ID)
		}
		for _, key := range append([]string{c.ID, c.Ticker, c.Name}, c.Aliases...) {
			if key == "" {
				continue
			}
			d.byKey[normalizeKey(key)] = c
		}
	}
	return d, nil
}

// Lookup resolves a company by ID, ticker, name, or alias.
// Returns nil when no entry matches.
func (d *Directory) Lookup(key string) *Company {
	if d == nil {
		return nil
	}
	return d.byKey[normalizeKey(key)]
}

// All returns every directory entry in file order.
func (d *Directory) All() []Company {
	return d.companies
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
