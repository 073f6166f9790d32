package query

import (
	"cmp"
	"fmt"
	"strings"

	"contentgraph/backend/internal/content"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" and "desc" in any case; anything else is Asc
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// Sort compares two entries. Sorts added to a query are applied in order and
// the first non-zero result decides.
type Sort func(a, b content.Entry) int

func (d Direction) apply(c int) int {
	if d == Desc {
		return -c
	}
	return c
}

// SortByField compares a field numerically when both values are numbers,
// otherwise by their string form. Entries missing the field sort last.
func SortByField(field string, dir Direction) Sort {
	return func(a, b content.Entry) int {
		av, aok := a.Field(field)
		bv, bok := b.Field(field)
		if c, decided := missingLast(aok && av != nil, bok && bv != nil); decided {
			return c
		}
		if af, ok := content.ToFloat(av); ok {
			if bf, ok := content.ToFloat(bv); ok {
				return dir.apply(cmp.Compare(af, bf))
			}
		}
		return dir.apply(strings.Compare(fmt.Sprint(av), fmt.Sprint(bv)))
	}
}

// SortByDate compares a date field. Undated entries sort last in both directions.
func SortByDate(field string, dir Direction) Sort {
	return func(a, b content.Entry) int {
		at, aok := a.Time(field)
		bt, bok := b.Time(field)
		if c, decided := missingLast(aok, bok); decided {
			return c
		}
		return dir.apply(at.Compare(bt))
	}
}

// SortByOrder compares the numeric order field ascending, missing last
func SortByOrder() Sort {
	return content.CompareOrder
}

// SortByTitle compares the title field case-insensitively
func SortByTitle(dir Direction) Sort {
	return func(a, b content.Entry) int {
		at, bt := a.String("title"), b.String("title")
		if c, decided := missingLast(at != "", bt != ""); decided {
			return c
		}
		return dir.apply(strings.Compare(strings.ToLower(at), strings.ToLower(bt)))
	}
}

// missingLast orders present values before absent ones. decided is false when
// both are present and the caller must compare the values.
func missingLast(aok, bok bool) (int, bool) {
	switch {
	case aok && bok:
		return 0, false
	case aok:
		return -1, true
	case bok:
		return 1, true
	}
	return 0, true
}
