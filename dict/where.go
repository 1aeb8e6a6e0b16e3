package dict

import (
	"fmt"
	"strings"
)

// Recurse selects how far a query descends below the bound pattern
// fields (§4.3).
type Recurse int

const (
	RecurseNone Recurse = iota
	RecurseOne
	RecurseFull
)

// BuildWhere emits the WHERE clause (without a trailing space normalised
// away) for m against patternValues, appending bind parameters to params
// in the same order the '?' placeholders appear in qb.
//
// If patternValues is empty and addUsername is false, nothing is emitted
// — the query selects every row the table holds. See Map's doc comment:
// don't register an unconditional map against a shared table.
func BuildWhere(username string, m *Map, patternValues []string, addUsername bool, recurse Recurse, qb *strings.Builder, params *[]Param) error {
	count := len(m.PatternFields)
	count2 := len(patternValues)

	if count2 == 0 && !addUsername {
		return nil
	}

	qb.WriteString(" WHERE")

	exactCount := count2
	if count == count2 && recurse != RecurseNone {
		exactCount = count2 - 1
	}
	if exactCount != count2 {
		return newError(KindKeyPastPattern, "key continues past the matched pattern %s", m.Pattern)
	}

	for i := 0; i < exactCount; i++ {
		if i > 0 {
			qb.WriteString(" AND")
		}
		fmt.Fprintf(qb, " %s = ?", m.PatternFields[i].Name)
		p, err := Encode(m.PatternFields[i].Type, patternValues[i], "")
		if err != nil {
			return err
		}
		*params = append(*params, p)
	}

	i := exactCount
	switch recurse {
	case RecurseNone:
		// nothing more to add
	case RecurseOne:
		if i > 0 {
			qb.WriteString(" AND")
		}
		if i < count2 {
			field := m.PatternFields[i]
			fmt.Fprintf(qb, " %s LIKE ?", field.Name)
			p1, err := Encode(field.Type, patternValues[i], "/%")
			if err != nil {
				return err
			}
			*params = append(*params, p1)
			fmt.Fprintf(qb, " AND %s NOT LIKE ?", field.Name)
			p2, err := Encode(field.Type, patternValues[i], "/%/%")
			if err != nil {
				return err
			}
			*params = append(*params, p2)
		} else {
			name := ""
			if i < count {
				name = m.PatternFields[i].Name
			}
			fmt.Fprintf(qb, " %s LIKE '%%' AND %s NOT LIKE '%%/%%'", name, name)
		}
	case RecurseFull:
		if i < count2 {
			if i > 0 {
				qb.WriteString(" AND")
			}
			field := m.PatternFields[i]
			fmt.Fprintf(qb, " %s LIKE ?", field.Name)
			p, err := Encode(field.Type, patternValues[i], "/%")
			if err != nil {
				return err
			}
			*params = append(*params, p)
		}
	}

	if addUsername {
		if count2 > 0 {
			qb.WriteString(" AND")
		}
		fmt.Fprintf(qb, " %s = ?", m.UsernameField)
		*params = append(*params, Param{Type: TypeString, Value: username})
	}

	return nil
}
