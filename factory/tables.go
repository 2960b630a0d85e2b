/*
Package factory provides TOML to Go table-definition conversion.

PURPOSE:
  Converts TOML table definitions into lookup.TableConfig values. The
  backend has been retargeted at different tables and column names many
  times; definitions live in a file so that retargeting needs no code.

TOML SCHEMA:
  [[table]]
  name      = "pallet"
  primary   = "id"
  secondary = "code"          # optional
  numeric   = "number"        # optional
  partial   = ["label"]       # optional, tried after primary + secondary

  [table.mapping]
  id            = "id"            # optional, defaults to primary
  title         = "label"
  title_default = "Unknown Pallet"
  group         = "#"
  group_format  = "Row #: %s"
  location      = ["location", "date"]
  quantity      = "quantity"
  updated       = "last_updated"
  flatten       = ["specifications"]

KEY FEATURES:
  - Built-in definitions for cell, degas, pallet and products
  - File definitions override built-ins with the same name
  - Validation errors name the offending table

USAGE:
  tables, err := factory.LoadFile("./tables.toml")
  cfg, ok := tables["cell"]
  res := resolver.Resolve(ctx, query, cfg)

SEE ALSO:
  - lookup/types.go: TableConfig definition
*/
package factory

import (
	"errors"
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/warp/property-finder/lookup"
)

// =============================================================================
// TOML SCHEMA TYPES
// =============================================================================

// TablesFile is the TOML document root.
type TablesFile struct {
	Tables []TableTOML `toml:"table"`
}

// TableTOML is the TOML representation of one table.
type TableTOML struct {
	Name      string      `toml:"name"`
	Primary   string      `toml:"primary"`
	Secondary string      `toml:"secondary,omitempty"`
	Numeric   string      `toml:"numeric,omitempty"`
	Partial   []string    `toml:"partial,omitempty"`
	Mapping   MappingTOML `toml:"mapping"`
}

// MappingTOML is the TOML representation of a field mapping.
type MappingTOML struct {
	ID           string   `toml:"id,omitempty"`
	Title        string   `toml:"title,omitempty"`
	TitleDefault string   `toml:"title_default,omitempty"`
	Group        string   `toml:"group,omitempty"`
	GroupFormat  string   `toml:"group_format,omitempty"`
	Location     []string `toml:"location,omitempty"`
	Quantity     string   `toml:"quantity,omitempty"`
	Updated      string   `toml:"updated,omitempty"`
	Flatten      []string `toml:"flatten,omitempty"`
}

// Validate checks the definition has what the resolver needs.
func (t *TableTOML) Validate() error {
	if t.Name == "" {
		return goerr.New("table name is required", goerr.V("primary", t.Primary))
	}
	if t.Primary == "" {
		return goerr.New("table primary field is required", goerr.V("table", t.Name))
	}
	if t.Mapping.Quantity != "" && t.Mapping.Quantity == t.Primary {
		return goerr.New("quantity field cannot be the primary field", goerr.V("table", t.Name))
	}
	return nil
}

// Config converts the TOML definition into a TableConfig.
func (t *TableTOML) Config() lookup.TableConfig {
	return lookup.TableConfig{
		Name:           t.Name,
		PrimaryField:   t.Primary,
		SecondaryField: t.Secondary,
		NumericField:   t.Numeric,
		PartialFields:  t.Partial,
		Mapping: lookup.FieldMapping{
			IDField:        t.Mapping.ID,
			TitleField:     t.Mapping.Title,
			TitleDefault:   t.Mapping.TitleDefault,
			GroupField:     t.Mapping.Group,
			GroupFormat:    t.Mapping.GroupFormat,
			LocationFields: t.Mapping.Location,
			QuantityField:  t.Mapping.Quantity,
			UpdatedField:   t.Mapping.Updated,
			FlattenFields:  t.Mapping.Flatten,
		},
	}
}

// =============================================================================
// TABLE FACTORY
// =============================================================================

// ParseTables parses TOML definitions and merges them over the built-ins.
func ParseTables(data []byte) (map[string]lookup.TableConfig, error) {
	var file TablesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse table definitions")
	}

	tables := Builtins()
	seen := make(map[string]bool)
	for i := range file.Tables {
		def := &file.Tables[i]
		if err := def.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid table definition", goerr.V("index", i))
		}
		if seen[def.Name] {
			return nil, goerr.New("duplicate table definition", goerr.V("table", def.Name))
		}
		seen[def.Name] = true
		tables[def.Name] = def.Config()
	}
	return tables, nil
}

// LoadFile reads definitions from path. An empty path or a missing file
// yields the built-ins only.
func LoadFile(path string) (map[string]lookup.TableConfig, error) {
	if path == "" {
		return Builtins(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Builtins(), nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read table definitions", goerr.V("path", path))
	}
	return ParseTables(data)
}

// Encode renders tables as TOML, sorted by name.
func Encode(tables map[string]lookup.TableConfig) ([]byte, error) {
	var file TablesFile
	for _, name := range Names(tables) {
		file.Tables = append(file.Tables, fromConfig(tables[name]))
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode table definitions")
	}
	return data, nil
}

// Names returns table names in sorted order.
func Names(tables map[string]lookup.TableConfig) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fromConfig(c lookup.TableConfig) TableTOML {
	return TableTOML{
		Name:      c.Name,
		Primary:   c.PrimaryField,
		Secondary: c.SecondaryField,
		Numeric:   c.NumericField,
		Partial:   c.PartialFields,
		Mapping: MappingTOML{
			ID:           c.Mapping.IDField,
			Title:        c.Mapping.TitleField,
			TitleDefault: c.Mapping.TitleDefault,
			Group:        c.Mapping.GroupField,
			GroupFormat:  c.Mapping.GroupFormat,
			Location:     c.Mapping.LocationFields,
			Quantity:     c.Mapping.QuantityField,
			Updated:      c.Mapping.UpdatedField,
			Flatten:      c.Mapping.FlattenFields,
		},
	}
}

// =============================================================================
// BUILT-IN TABLES
// =============================================================================

// Builtins returns the table definitions the app has shipped with.
func Builtins() map[string]lookup.TableConfig {
	return map[string]lookup.TableConfig{
		"cell": {
			Name:         "cell",
			PrimaryField: "id",
			Mapping: lookup.FieldMapping{
				TitleField:     "defect type",
				TitleDefault:   "Unknown Defect",
				GroupField:     "#",
				GroupFormat:    "Row #: %s",
				LocationFields: []string{"date"},
				QuantityField:  "value",
			},
		},
		"degas": {
			Name:           "degas",
			PrimaryField:   "id",
			SecondaryField: "serial",
			NumericField:   "#",
			Mapping: lookup.FieldMapping{
				TitleField:     "defect type",
				TitleDefault:   "Unknown Defect",
				LocationFields: []string{"date"},
				QuantityField:  "value",
			},
		},
		"pallet": {
			Name:           "pallet",
			PrimaryField:   "id",
			SecondaryField: "code",
			NumericField:   "number",
			Mapping: lookup.FieldMapping{
				TitleField:     "label",
				TitleDefault:   "Unlabeled Pallet",
				LocationFields: []string{"location"},
				QuantityField:  "quantity",
			},
		},
		"products": {
			Name:         "products",
			PrimaryField: "id",
			Mapping: lookup.FieldMapping{
				TitleField:     "name",
				GroupField:     "category",
				LocationFields: []string{"location"},
				QuantityField:  "quantity",
				UpdatedField:   "last_updated",
				FlattenFields:  []string{"specifications"},
			},
		},
	}
}
