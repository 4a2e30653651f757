// Package roster validates page-group identities against the student roster.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/entity"
	"github.com/sgte/pdf-splitter/internal/nationalid"
)

// Lookup returns every roster entry registered under a normalized RUN.
// Implementations must query the live roster on each call.
type Lookup interface {
	Lookup(ctx context.Context, run string) ([]entity.RosterEntry, error)
}

// NameSearcher finds roster entries whose name resembles a guess. It only
// feeds triage hints; it never resolves a group on its own.
type NameSearcher interface {
	SearchByName(ctx context.Context, name string, limit int) ([]entity.RosterEntry, error)
}

// Resolution messages recorded on groups.
const (
	MsgNoIdentity  = "no identity found on any page"
	MsgBadChecksum = "identity failed the check digit"
	MsgNotInRoster = "student not in roster"
	MsgAmbiguous   = "several roster students share this identity"
)

const maxCandidates = 5

type Resolver struct {
	lookup Lookup
	names  NameSearcher
	logger *slog.Logger
}

type Option func(*Resolver)

// WithNameSearcher attaches name-based triage candidates to unresolved groups.
func WithNameSearcher(n NameSearcher) Option {
	return func(r *Resolver) { r.names = n }
}

func NewResolver(lookup Lookup, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{lookup: lookup, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve sets the status of g from a fresh roster lookup.
func (r *Resolver) Resolve(ctx context.Context, g entity.PageGroup) entity.PageGroup {
	if g.Identity == "" {
		g.Status = constants.GroupUnmatched
		g.Message = MsgNoIdentity
		g.Candidates = r.candidates(ctx, g.NameGuess)
		return g
	}

	run, err := nationalid.Validate(g.Identity)
	if err != nil {
		g.Status = constants.GroupUnmatched
		g.Message = MsgBadChecksum
		if errors.Is(err, nationalid.ErrMalformed) || errors.Is(err, nationalid.ErrEmpty) {
			g.Message = fmt.Sprintf("identity %q is malformed", g.Identity)
		}
		g.Candidates = r.candidates(ctx, g.NameGuess)
		return g
	}
	g.Identity = run

	entries, err := r.lookup.Lookup(ctx, run)
	if err != nil {
		lerr := common.RosterLookupFailed(run, err)
		r.logger.Error("roster lookup failed", "run", run, "error", lerr)
		g.Status = constants.GroupFailed
		g.Message = lerr.Error()
		return g
	}

	switch len(entries) {
	case 0:
		g.Status = constants.GroupUnmatched
		g.Message = MsgNotInRoster
		g.Candidates = r.candidates(ctx, g.NameGuess)
	case 1:
		e := entries[0]
		if canonical, err := nationalid.Normalize(e.RUN); err == nil {
			e.RUN = canonical
			g.Identity = canonical
		}
		g.Status = constants.GroupMatched
		g.Student = &e
		g.Message = ""
	default:
		g.Status = constants.GroupAmbiguous
		g.Message = MsgAmbiguous
		g.Candidates = entries
	}
	r.logger.Debug("group resolved", "run", run, "status", g.Status, "pages", len(g.Pages))
	return g
}

// ResolveAll resolves groups in order. Each group gets its own lookup.
func (r *Resolver) ResolveAll(ctx context.Context, groups []entity.PageGroup) []entity.PageGroup {
	out := make([]entity.PageGroup, len(groups))
	for i, g := range groups {
		out[i] = r.Resolve(ctx, g)
	}
	return out
}

func (r *Resolver) candidates(ctx context.Context, name string) []entity.RosterEntry {
	if r.names == nil || name == "" {
		return nil
	}
	found, err := r.names.SearchByName(ctx, name, maxCandidates)
	if err != nil {
		r.logger.Warn("name search failed", "name", name, "error", err)
		return nil
	}
	return found
}
