package catalog

import (
	"regexp"
	"strings"
)

var (
	fkLocalPattern = regexp.MustCompile(`FOREIGN KEY \(([^)]+)\) REFERENCES ([^\s(]+)\s*\(([^)]+)\)`)
	pkPattern      = regexp.MustCompile(`PRIMARY KEY \(([^)]+)\)`)
)

// ParseForeignKey extracts the structured parts of a foreign-key constraint
// from its textual definition, e.g.
//
//	FOREIGN KEY (beneficiary_id) REFERENCES person.person(person_id) ON DELETE CASCADE
//
// Any part that cannot be extracted degrades to the Unknown sentinel; the
// caller keeps such constraints visible but out of traversal.
func ParseForeignKey(details string) (local []string, refTable string, refCols []string, rule DeleteRule) {
	rule = DeleteOther
	if strings.Contains(strings.ToUpper(details), "ON DELETE CASCADE") {
		rule = DeleteCascade
	}

	m := fkLocalPattern.FindStringSubmatch(details)
	if m == nil {
		return []string{Unknown}, Unknown, []string{Unknown}, rule
	}
	return splitColumnList(m[1]), strings.TrimSpace(m[2]), splitColumnList(m[3]), rule
}

// ParsePrimaryKey extracts the ordered primary-key column list from a
// constraint definition such as "PRIMARY KEY (entity_id ASC)". It returns nil
// when the definition cannot be parsed; callers must treat nil as "existence
// unknown", not "no primary key".
func ParsePrimaryKey(details string) []string {
	m := pkPattern.FindStringSubmatch(details)
	if m == nil {
		return nil
	}
	var cols []string
	for _, part := range strings.Split(m[1], ",") {
		fields := strings.Fields(part) // strips ASC/DESC qualifiers
		if len(fields) == 0 {
			continue
		}
		cols = append(cols, fields[0])
	}
	return cols
}

func splitColumnList(s string) []string {
	var cols []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cols = append(cols, part)
	}
	return cols
}
