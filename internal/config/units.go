package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/alarm-display/internal/domain"
)

// LoadUnitTable reads the YAML unit table:
//
//	units:
//	  "01": LZ Kleve
//	  "05": LG Reichswalde
//	special_suffixes:
//	  LZ Kleve: ["01"]
//	ignore_organizations: [RD]
//
// An empty path yields an empty table.
func LoadUnitTable(path string) (domain.UnitTable, error) {
	if path == "" {
		return domain.UnitTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.UnitTable{}, fmt.Errorf("read unit table: %w", err)
	}
	var t domain.UnitTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return domain.UnitTable{}, fmt.Errorf("parse unit table %s: %w", path, err)
	}
	return t, nil
}
