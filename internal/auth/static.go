package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// StaticFile is the on-disk layout of a static directory:
//
//	companies:
//	  - name: Company 1
//	    code: "100001"
//	accounts:
//	  - pin: "200001"
//	    kind: operator
//	    company_code: "100001"
type StaticFile struct {
	Companies []model.Company `yaml:"companies"`
	Accounts  []StaticAccount `yaml:"accounts"`
}

// StaticAccount is one login in a static directory.
type StaticAccount struct {
	Pin         string `yaml:"pin"`
	Kind        string `yaml:"kind"`
	CompanyCode string `yaml:"company_code"`
}

// StaticDirectory serves accounts from an in-memory table. It also carries
// the company lookup table used to name companies on load.
type StaticDirectory struct {
	companies []model.Company
	accounts  map[string]DirectoryRecord
}

// LoadStaticFile reads a YAML directory file.
func LoadStaticFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read directory file: %w", err)
	}
	var f StaticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("auth: parse directory file %s: %w", path, err)
	}
	return NewStaticDirectory(f)
}

// NewStaticDirectory indexes accounts by PIN. Every account must reference a
// known company.
func NewStaticDirectory(f StaticFile) (*StaticDirectory, error) {
	names := make(map[string]string, len(f.Companies))
	for _, c := range f.Companies {
		names[c.Code] = c.Name
	}

	d := &StaticDirectory{
		companies: f.Companies,
		accounts:  make(map[string]DirectoryRecord, len(f.Accounts)),
	}
	for i, a := range f.Accounts {
		pin := strings.TrimSpace(a.Pin)
		if pin == "" {
			return nil, fmt.Errorf("auth: account %d has no pin", i)
		}
		name, ok := names[a.CompanyCode]
		if !ok {
			return nil, fmt.Errorf("auth: account %s references unknown company %q", pin, a.CompanyCode)
		}
		if _, dup := d.accounts[pin]; dup {
			return nil, fmt.Errorf("auth: duplicate pin %s", pin)
		}
		rec := DirectoryRecord{Company: name, CompanyCode: a.CompanyCode, AccountKind: a.Kind}
		if model.AccountKind(a.Kind) == model.AccountOperator {
			rec.OperatorPin = pin
		}
		d.accounts[pin] = rec
	}
	return d, nil
}

// Lookup returns the account for pin.
func (d *StaticDirectory) Lookup(ctx context.Context, pin string) (DirectoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return DirectoryRecord{}, err
	}
	rec, ok := d.accounts[pin]
	if !ok {
		return DirectoryRecord{}, ErrNotFound
	}
	return rec, nil
}

// Companies returns the company lookup table.
func (d *StaticDirectory) Companies() []model.Company {
	return d.companies
}
