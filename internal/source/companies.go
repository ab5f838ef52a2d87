package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// CompanyTable maps a company code (the first six characters of a job id) to
// the company's display name.
type CompanyTable map[string]string

// NewCompanyTable indexes companies by code. Later entries win on duplicates.
func NewCompanyTable(companies []model.Company) CompanyTable {
	t := make(CompanyTable, len(companies))
	for _, c := range companies {
		if c.Code == "" {
			continue
		}
		t[c.Code] = c.Name
	}
	return t
}

// Lookup returns the company name for code, or "Other" when unknown.
func (t CompanyTable) Lookup(code string) string {
	if name, ok := t[code]; ok && name != "" {
		return name
	}
	return model.OtherLabel
}

type companiesFile struct {
	Companies []model.Company `yaml:"companies"`
}

// LoadCompanies reads a YAML file with a top-level companies list.
func LoadCompanies(path string) ([]model.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read companies: %w", err)
	}
	var f companiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("source: parse companies %s: %w", path, err)
	}
	return f.Companies, nil
}
