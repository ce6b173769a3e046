package repo

import (
	"encoding/json"
	"errors"
	"fmt"

	"whsper/internal/domain"
	"whsper/internal/store"
)

// ErrNotFound is returned when a claim or the window config is not stored.
var ErrNotFound = store.ErrNotFound

// Repo encodes domain records onto store keys. It holds no state; every call
// works against the snapshot it is handed.
type Repo struct{}

func indexKey(idx domain.Index, owner domain.Address) (store.Key, error) {
	switch idx {
	case domain.ByRecipient:
		return store.RecipientIndexKey(string(owner)), nil
	case domain.ByCreator:
		return store.CreatorIndexKey(string(owner)), nil
	default:
		return store.Key{}, fmt.Errorf("unknown index %d", int(idx))
	}
}

func (Repo) GetClaim(r store.Reader, id uint64) (domain.Claim, error) {
	var c domain.Claim
	data, err := r.Get(store.ClaimKey(id))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode claim %d: %w", id, err)
	}
	return c, nil
}

// ClaimIDs returns the owner's id sequence in insertion order. An owner with
// no entry has an empty sequence.
func (Repo) ClaimIDs(r store.Reader, idx domain.Index, owner domain.Address) ([]uint64, error) {
	key, err := indexKey(idx, owner)
	if err != nil {
		return nil, err
	}
	data, err := r.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode %s index for %s: %w", idx, owner, err)
	}
	return ids, nil
}

func (Repo) GetWindowConfig(r store.Reader) (domain.ClaimWindowConfig, error) {
	var cfg domain.ClaimWindowConfig
	data, err := r.Get(store.ConfigKey())
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode claim window config: %w", err)
	}
	return cfg, nil
}

func (Repo) PutClaim(w store.Writer, c domain.Claim) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode claim %d: %w", c.ID, err)
	}
	return w.Put(store.ClaimKey(c.ID), payload)
}

// AppendClaimID adds id to the end of the owner's sequence in idx.
func (r Repo) AppendClaimID(w store.Writer, idx domain.Index, owner domain.Address, id uint64) error {
	ids, err := r.ClaimIDs(w, idx, owner)
	if err != nil {
		return err
	}
	key, err := indexKey(idx, owner)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}
	return w.Put(key, payload)
}

func (Repo) PutWindowConfig(w store.Writer, cfg domain.ClaimWindowConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return w.Put(store.ConfigKey(), payload)
}
