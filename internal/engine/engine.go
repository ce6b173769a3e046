package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"whsper/internal/domain"
	"whsper/internal/metrics"
	"whsper/internal/repo"
	"whsper/internal/store"
)

// Engine answers the read-only claim queries. Each call runs in one store
// snapshot and never writes.
type Engine struct {
	Store store.Store
	Repo  repo.Repo
	Log   *slog.Logger
	Now   func() time.Time
}

func New(s store.Store, log *slog.Logger) Engine {
	if log == nil {
		log = slog.Default()
	}
	return Engine{
		Store: s,
		Log:   log,
		Now:   time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e Engine) observe(op string, start time.Time) {
	metrics.QueriesTotal.WithLabelValues(op).Inc()
	metrics.QueryDuration.WithLabelValues(op).Observe(e.now().Sub(start).Seconds())
}

// EffectiveLimit clamps a requested page size into [1, MaxPageSize].
func EffectiveLimit(limit uint32) uint32 {
	if limit > domain.MaxPageSize {
		return domain.MaxPageSize
	}
	if limit < 1 {
		return 1
	}
	return limit
}

// GetPendingClaim looks a claim up by id. A missing claim is NotFound, not an
// error; errors only come from the store itself.
func (e Engine) GetPendingClaim(ctx context.Context, id uint64) (domain.GetClaimResult, error) {
	defer e.observe("get_pending_claim", e.now())
	var res domain.GetClaimResult
	err := e.Store.View(ctx, func(r store.Reader) error {
		var err error
		res, err = e.lookup(r, id)
		return err
	})
	if err != nil {
		return domain.NotFound(), err
	}
	return res, nil
}

func (e Engine) lookup(r store.Reader, id uint64) (domain.GetClaimResult, error) {
	c, err := e.Repo.GetClaim(r, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotFound(), nil
	}
	if err != nil {
		return domain.NotFound(), err
	}
	return domain.Found(c), nil
}

func (e Engine) ClaimsByRecipient(ctx context.Context, recipient domain.Address, limit uint32, includeTerminal *bool) ([]domain.Claim, error) {
	return e.ListBy(ctx, domain.ByRecipient, recipient, limit, includeTerminal)
}

func (e Engine) ClaimsByCreator(ctx context.Context, creator domain.Address, limit uint32, includeTerminal *bool) ([]domain.Claim, error) {
	return e.ListBy(ctx, domain.ByCreator, creator, limit, includeTerminal)
}

// ListBy walks the owner's id sequence in insertion order and returns up to
// EffectiveLimit(limit) claims. Only Pending claims qualify unless
// includeTerminal is set. Ids with no stored claim are skipped. The walk stops
// as soon as the page is full.
func (e Engine) ListBy(ctx context.Context, idx domain.Index, owner domain.Address, limit uint32, includeTerminal *bool) ([]domain.Claim, error) {
	defer e.observe("list_"+idx.String(), e.now())
	pageSize := int(EffectiveLimit(limit))
	includeAll := includeTerminal != nil && *includeTerminal

	result := make([]domain.Claim, 0)
	err := e.Store.View(ctx, func(r store.Reader) error {
		ids, err := e.Repo.ClaimIDs(r, idx, owner)
		if err != nil {
			return err
		}
		visited := 0
		for _, id := range ids {
			if len(result) >= pageSize {
				break
			}
			visited++
			res, err := e.lookup(r, id)
			if err != nil {
				return err
			}
			c, ok := res.Claim()
			if !ok {
				metrics.DanglingIndexEntries.WithLabelValues(idx.String()).Inc()
				e.logger().Debug("skipping dangling index entry", "index", idx.String(), "owner", string(owner), "claim_id", id)
				continue
			}
			if includeAll || c.Status == domain.StatusPending {
				result = append(result, c)
			}
		}
		metrics.ScannedIndexEntries.WithLabelValues(idx.String()).Observe(float64(visited))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list claims %s %s: %w", idx, owner, err)
	}
	return result, nil
}

// ClaimWindowConfig returns the stored window config, or the zero config when
// none was ever written. Stored values are returned as-is.
func (e Engine) ClaimWindowConfig(ctx context.Context) (domain.ClaimWindowConfig, error) {
	defer e.observe("get_claim_window_config", e.now())
	var cfg domain.ClaimWindowConfig
	err := e.Store.View(ctx, func(r store.Reader) error {
		var err error
		cfg, err = e.Repo.GetWindowConfig(r)
		if errors.Is(err, repo.ErrNotFound) {
			cfg = domain.ClaimWindowConfig{}
			return nil
		}
		return err
	})
	if err != nil {
		return domain.ClaimWindowConfig{}, err
	}
	return cfg, nil
}
