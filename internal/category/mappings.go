package category

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dlev/finsync/internal/models"
)

// ProviderMapping normalizes a category an institution reports verbatim.
type ProviderMapping struct {
	Institution string `yaml:"institution"`
	Raw         string `yaml:"raw"`
	Category    string `yaml:"category"`
}

// MerchantMapping assigns a category when the transaction description
// contains the pattern, case-insensitively.
type MerchantMapping struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// Mappings holds both mapping tables. Provider mappings take precedence over
// merchant mappings when both match.
type Mappings struct {
	Providers []ProviderMapping `yaml:"providers"`
	Merchants []MerchantMapping `yaml:"merchants"`

	providerIndex map[string]string
}

// LoadMappings reads the mapping tables from a YAML file. A missing file
// yields empty tables, not an error; the pass is then a no-op.
func LoadMappings(path string) (*Mappings, error) {
	m := &Mappings{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		m.buildIndex()
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse mappings %s: %w", path, err)
	}
	m.buildIndex()
	return m, nil
}

// Save writes the mapping tables back to a YAML file.
func (m *Mappings) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mappings: %w", err)
	}
	return nil
}

func (m *Mappings) buildIndex() {
	m.providerIndex = make(map[string]string, len(m.Providers))
	for _, p := range m.Providers {
		m.providerIndex[providerKey(p.Institution, p.Raw)] = p.Category
	}
}

func providerKey(institution, raw string) string {
	return strings.ToLower(institution) + "|" + strings.ToLower(strings.TrimSpace(raw))
}

// Lookup resolves the derived category for a transaction: the provider table
// keyed by (institution, raw category) first, then the merchant table by
// description pattern. Returns "" when nothing matches.
func (m *Mappings) Lookup(institution models.Institution, t models.Transaction) string {
	if t.RawCategory != "" {
		if cat, ok := m.providerIndex[providerKey(string(institution), t.RawCategory)]; ok {
			return cat
		}
	}
	desc := strings.ToLower(t.Description)
	for _, merchant := range m.Merchants {
		if merchant.Pattern != "" && strings.Contains(desc, strings.ToLower(merchant.Pattern)) {
			return merchant.Category
		}
	}
	return ""
}
