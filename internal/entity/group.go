package entity

import "github.com/sgte/pdf-splitter/constants"

// PageGroup is a maximal contiguous run of pages attributed to one identity.
type PageGroup struct {
	Pages        []PageResult           `json:"pages"`
	Identity     string                 `json:"identity,omitempty"`
	NameGuess    string                 `json:"name_guess,omitempty"`
	DocumentType constants.DocumentType `json:"document_type"`
	Status       constants.GroupStatus  `json:"status"`
	Student      *RosterEntry           `json:"student,omitempty"`
	Candidates   []RosterEntry          `json:"candidates,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// FirstPage returns the index of the first page, or -1 for an empty group.
func (g PageGroup) FirstPage() int {
	if len(g.Pages) == 0 {
		return -1
	}
	return g.Pages[0].Page.Index
}

// LastPage returns the index of the last page, or -1 for an empty group.
func (g PageGroup) LastPage() int {
	if len(g.Pages) == 0 {
		return -1
	}
	return g.Pages[len(g.Pages)-1].Page.Index
}

// Segment is a contiguous same-type slice of a group, written as one artifact.
type Segment struct {
	DocumentType constants.DocumentType
	Pages        []int
}

// Segments splits the group into contiguous runs of the same document type.
// Pages of unknown type inherit the type of the page before them; a leading
// unknown run takes the group's type.
func (g PageGroup) Segments() []Segment {
	var out []Segment
	current := g.DocumentType
	for _, p := range g.Pages {
		t := p.DocumentType
		if t == constants.Unknown || t == "" {
			t = current
		}
		current = t
		if n := len(out); n > 0 && out[n-1].DocumentType == t {
			out[n-1].Pages = append(out[n-1].Pages, p.Page.Index)
			continue
		}
		out = append(out, Segment{DocumentType: t, Pages: []int{p.Page.Index}})
	}
	return out
}
