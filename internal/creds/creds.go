// Package creds exposes a read-only view over the configured credential
// sets. The sync core never mutates credentials; it only selects which sets
// to run.
package creds

import (
	"fmt"
	"strconv"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/models"
)

// Set is one credential set for an institution, optionally labeled.
type Set struct {
	Label    string
	Username string
	Password string
	ID       string
}

// Provider supplies credential sets per institution.
type Provider struct {
	cfg *config.Config
}

// NewProvider wraps the loaded configuration.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{cfg: cfg}
}

// ForInstitution returns every credential set configured for the institution.
func (p *Provider) ForInstitution(inst models.Institution) ([]Set, error) {
	ic, ok := p.cfg.Institution(inst)
	if !ok {
		return nil, fmt.Errorf("institution %s is not configured", inst)
	}
	sets := make([]Set, 0, len(ic.Credentials))
	for _, c := range ic.Credentials {
		sets = append(sets, Set{Label: c.Label, Username: c.Username, Password: c.Password, ID: c.ID})
	}
	return sets, nil
}

// Select filters sets by a user-supplied selector: a label match or a
// zero-based index. An empty selector keeps every set.
func Select(sets []Set, selector string) ([]Set, error) {
	if selector == "" {
		return sets, nil
	}
	for _, s := range sets {
		if s.Label == selector {
			return []Set{s}, nil
		}
	}
	if idx, err := strconv.Atoi(selector); err == nil {
		if idx < 0 || idx >= len(sets) {
			return nil, fmt.Errorf("account index %d out of range (have %d)", idx, len(sets))
		}
		return []Set{sets[idx]}, nil
	}
	return nil, fmt.Errorf("no credential set matches selector %q", selector)
}
