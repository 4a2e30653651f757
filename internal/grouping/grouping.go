// Package grouping folds an ordered page sequence into per-student page groups.
package grouping

import (
	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/entity"
)

// Group partitions results into maximal contiguous runs attributed to one
// identity. Only high-confidence pages open or switch groups; every other
// page is carried forward into the pending group. Pages before the first
// identified page form an unresolved group of their own, unless they are all
// blank, in which case they join the first identified group.
//
// results must be ordered by page index. Group is pure: the same input always
// yields the same groups.
func Group(results []entity.PageResult) []entity.PageGroup {
	var (
		out     []entity.PageGroup
		pending *entity.PageGroup
	)
	flush := func() {
		if pending != nil {
			out = append(out, finish(*pending))
			pending = nil
		}
	}

	for _, r := range results {
		id, ok := anchor(r)
		switch {
		case !ok:
			if pending == nil {
				pending = &entity.PageGroup{}
			}
		case pending == nil:
			pending = &entity.PageGroup{Identity: id}
		case pending.Identity == "" && trivial(*pending):
			pending.Identity = id
		case pending.Identity != id:
			flush()
			pending = &entity.PageGroup{Identity: id}
		}
		pending.Pages = append(pending.Pages, r)
	}
	flush()
	return out
}

// anchor reports the identity a page opens or confirms a group with.
func anchor(r entity.PageResult) (string, bool) {
	c := r.Identity
	if c.Confidence == constants.ConfidenceHigh && c.IDValid && c.IDNumber != "" {
		return c.IDNumber, true
	}
	return "", false
}

func trivial(g entity.PageGroup) bool {
	for _, p := range g.Pages {
		if !p.Page.Blank() {
			return false
		}
	}
	return true
}

func finish(g entity.PageGroup) entity.PageGroup {
	g.Status = constants.GroupPendingResolution
	g.DocumentType = constants.Unknown
	for _, p := range g.Pages {
		if p.DocumentType != "" && p.DocumentType != constants.Unknown {
			g.DocumentType = p.DocumentType
			break
		}
	}
	for _, p := range g.Pages {
		if p.Identity.FullNameGuess != "" {
			g.NameGuess = p.Identity.FullNameGuess
			break
		}
	}
	// an unresolved group keeps the first partial ID it saw so the resolver
	// can report it as failing the checksum
	if g.Identity == "" {
		for _, p := range g.Pages {
			if p.Identity.IDNumber != "" {
				g.Identity = p.Identity.IDNumber
				break
			}
		}
	}
	return g
}
