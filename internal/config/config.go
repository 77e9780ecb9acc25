// Package config loads the TOML run configuration: connection URLs, the
// traversal root, and the rule set (registered uniqueness rules and row
// acceptance rules) the engine consults during processing.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full refill.toml file.
type Config struct {
	Source  Endpoint `toml:"source"`
	Target  Endpoint `toml:"target"`
	Root    Root     `toml:"root"`
	Rules   Rules    `toml:"rules"`
	Subject Subject  `toml:"subject"`
}

// Endpoint is one database connection.
type Endpoint struct {
	URL string `toml:"url"`
}

// Root names the table the traversal is seeded from and the key column used
// to expand a bare subject identifier into a predicate.
type Root struct {
	Table     string `toml:"table"`
	KeyColumn string `toml:"key_column"`
}

// Rules are the per-table business rules the pipeline enforces.
type Rules struct {
	Unique   []UniqueRule   `toml:"unique"`
	Required []RequiredRule `toml:"required"`
}

// UniqueRule registers a uniqueness constraint the target enforces; rows
// whose column tuple collides with an existing target row are skipped, and
// their dependents cascade-skipped.
type UniqueRule struct {
	Table   string   `toml:"table"`
	Columns []string `toml:"columns"`
}

// RequiredRule rejects rows whose named column is null or blank.
type RequiredRule struct {
	Table  string `toml:"table"`
	Column string `toml:"column"`
}

// Subject optionally supplies a query run against the source with the subject
// identifier as its single parameter; the resulting label decorates the
// script header.
type Subject struct {
	Query string `toml:"query"`
}

// Default returns the configuration used when no file is given: the entity
// root and the uniqueness rules known to collide in practice.
func Default() *Config {
	return &Config{
		Root: Root{Table: "entity.entity", KeyColumn: "entity_id"},
		Rules: Rules{
			Unique: []UniqueRule{
				{Table: "account.physical_account", Columns: []string{"custodian_account_id", "custodian_id"}},
			},
			Required: []RequiredRule{
				{Table: "person.person", Column: "email"},
			},
		},
	}
}

// Load reads a TOML config file, layering it over Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}

// UniqueFor returns the registered uniqueness column sets for a table.
func (r Rules) UniqueFor(table string) [][]string {
	var out [][]string
	for _, u := range r.Unique {
		if u.Table == table {
			out = append(out, u.Columns)
		}
	}
	return out
}

// RequiredFor returns the columns that must be non-blank for a table's rows
// to be accepted.
func (r Rules) RequiredFor(table string) []string {
	var out []string
	for _, req := range r.Required {
		if req.Table == table {
			out = append(out, req.Column)
		}
	}
	return out
}
