// Package fixtures seeds a store from a YAML document for development and
// tests. It writes raw records and index entries; it carries no claim
// lifecycle rules.
package fixtures

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"whsper/internal/domain"
	"whsper/internal/repo"
	"whsper/internal/store"
)

// Document models a fixture file.
type Document struct {
	WindowConfig *domain.ClaimWindowConfig `yaml:"window_config"`
	Claims       []Claim                   `yaml:"claims"`
	// IndexEntries are appended verbatim after the claims, so an entry may
	// reference an id that has no record.
	IndexEntries []IndexEntry `yaml:"index_entries"`
}

type Claim struct {
	ID               uint64             `yaml:"id"`
	Creator          string             `yaml:"creator"`
	Recipient        string             `yaml:"recipient"`
	Amount           domain.Amount      `yaml:"amount"`
	Token            string             `yaml:"token"`
	Status           domain.ClaimStatus `yaml:"status"`
	CreatedAt        uint64             `yaml:"created_at"`
	ClaimWindowStart uint64             `yaml:"claim_window_start"`
	ClaimWindowEnd   uint64             `yaml:"claim_window_end"`
	// Unindexed claims are stored without touching either index.
	Unindexed bool `yaml:"unindexed"`
}

type IndexEntry struct {
	Index string   `yaml:"index"`
	Owner string   `yaml:"owner"`
	IDs   []uint64 `yaml:"ids"`
}

// Summary reports what Load wrote.
type Summary struct {
	Claims       int  `json:"claims"`
	IndexEntries int  `json:"index_entries"`
	WindowConfig bool `json:"window_config"`
}

func (c Claim) toDomain() domain.Claim {
	return domain.Claim{
		ID:               c.ID,
		Creator:          domain.Address(c.Creator),
		Recipient:        domain.Address(c.Recipient),
		Amount:           c.Amount,
		Token:            domain.Address(c.Token),
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
		ClaimWindowStart: c.ClaimWindowStart,
		ClaimWindowEnd:   c.ClaimWindowEnd,
	}
}

// ParseIndex maps a fixture or CLI index name onto domain.Index.
func ParseIndex(name string) (domain.Index, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "recipient", "by_recipient", "by-recipient":
		return domain.ByRecipient, nil
	case "creator", "by_creator", "by-creator":
		return domain.ByCreator, nil
	default:
		return 0, fmt.Errorf("invalid index %q", name)
	}
}

// Validate checks ids are unique, addresses present and windows ordered.
func (d Document) Validate() error {
	seen := map[uint64]bool{}
	for i, c := range d.Claims {
		if seen[c.ID] {
			return fmt.Errorf("claims[%d]: duplicate id %d", i, c.ID)
		}
		seen[c.ID] = true
		if c.Creator == "" || c.Recipient == "" || c.Token == "" {
			return fmt.Errorf("claims[%d]: creator, recipient and token are required", i)
		}
		if !c.Status.Valid() {
			return fmt.Errorf("claims[%d]: invalid status", i)
		}
		if c.CreatedAt > c.ClaimWindowStart || c.ClaimWindowStart > c.ClaimWindowEnd {
			return fmt.Errorf("claims[%d]: require created_at <= claim_window_start <= claim_window_end", i)
		}
	}
	for i, e := range d.IndexEntries {
		if _, err := ParseIndex(e.Index); err != nil {
			return fmt.Errorf("index_entries[%d]: %w", i, err)
		}
		if e.Owner == "" {
			return fmt.Errorf("index_entries[%d]: owner is required", i)
		}
	}
	return nil
}

// FromYAML parses and validates a fixture document.
func FromYAML(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("invalid fixture yaml: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return doc, err
	}
	return doc, nil
}

func FromFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return FromYAML(data)
}

// Load writes the document in one transaction. Claims are appended to both
// indices in document order.
func Load(ctx context.Context, s store.Store, doc Document) (Summary, error) {
	if err := doc.Validate(); err != nil {
		return Summary{}, err
	}
	var r repo.Repo
	var sum Summary
	err := s.Update(ctx, func(w store.Writer) error {
		if doc.WindowConfig != nil {
			if err := r.PutWindowConfig(w, *doc.WindowConfig); err != nil {
				return fmt.Errorf("put window config: %w", err)
			}
			sum.WindowConfig = true
		}
		for _, fc := range doc.Claims {
			c := fc.toDomain()
			if err := r.PutClaim(w, c); err != nil {
				return err
			}
			sum.Claims++
			if fc.Unindexed {
				continue
			}
			for _, idx := range []domain.Index{domain.ByRecipient, domain.ByCreator} {
				if err := r.AppendClaimID(w, idx, idx.Owner(c), c.ID); err != nil {
					return fmt.Errorf("index claim %d: %w", c.ID, err)
				}
				sum.IndexEntries++
			}
		}
		for _, e := range doc.IndexEntries {
			idx, _ := ParseIndex(e.Index)
			for _, id := range e.IDs {
				if err := r.AppendClaimID(w, idx, domain.Address(e.Owner), id); err != nil {
					return err
				}
				sum.IndexEntries++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}
