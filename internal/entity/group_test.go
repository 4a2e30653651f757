package entity

import (
	"reflect"
	"testing"

	"github.com/sgte/pdf-splitter/constants"
)

func pr(i int, t constants.DocumentType) PageResult {
	return PageResult{Page: SourcePage{Index: i}, DocumentType: t}
}

func TestSegments(t *testing.T) {
	tests := []struct {
		name  string
		group PageGroup
		want  []Segment
	}{
		{
			name: "unknown pages inherit previous type",
			group: PageGroup{DocumentType: constants.Biblioteca, Pages: []PageResult{
				pr(0, constants.Biblioteca), pr(1, constants.Unknown), pr(2, constants.Unknown),
			}},
			want: []Segment{{DocumentType: constants.Biblioteca, Pages: []int{0, 1, 2}}},
		},
		{
			name: "type change starts a new segment",
			group: PageGroup{DocumentType: constants.Financiero, Pages: []PageResult{
				pr(3, constants.Financiero), pr(4, constants.Unknown), pr(5, constants.Acta), pr(6, constants.Unknown),
			}},
			want: []Segment{
				{DocumentType: constants.Financiero, Pages: []int{3, 4}},
				{DocumentType: constants.Acta, Pages: []int{5, 6}},
			},
		},
		{
			name: "leading unknown takes group type",
			group: PageGroup{DocumentType: constants.SDT, Pages: []PageResult{
				pr(7, constants.Unknown), pr(8, constants.SDT),
			}},
			want: []Segment{{DocumentType: constants.SDT, Pages: []int{7, 8}}},
		},
		{
			name: "all unknown",
			group: PageGroup{DocumentType: constants.Unknown, Pages: []PageResult{
				pr(0, constants.Unknown), pr(1, constants.Unknown),
			}},
			want: []Segment{{DocumentType: constants.Unknown, Pages: []int{0, 1}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.group.Segments(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Segments() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBlank(t *testing.T) {
	if !(SourcePage{Text: " \n\t"}).Blank() {
		t.Error("whitespace page should be blank")
	}
	if (SourcePage{Text: "x"}).Blank() {
		t.Error("page with text is not blank")
	}
}
