// Package render turns the structured statement plan into the final mutation
// script. All literal quoting and escaping lives here and nowhere else.
package render

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"refill/internal/catalog"
	"refill/internal/plan"
)

const timestampLayout = "2006-01-02 15:04:05.999999999Z07:00"

// Literal renders one typed value as SQL literal text. Strings are
// single-quoted with embedded quotes doubled, booleans become TRUE/FALSE,
// binary values become a quoted base64 string, temporal columns are always
// quoted, and nil renders as NULL.
func Literal(v plan.Value) string {
	switch val := v.V.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case []byte:
		return QuoteString(base64.StdEncoding.EncodeToString(val))
	case time.Time:
		return QuoteString(val.Format(timestampLayout))
	case string:
		return QuoteString(val)
	default:
		if v.Kind == catalog.KindTemporal {
			return QuoteString(fmt.Sprint(val))
		}
		return fmt.Sprint(val)
	}
}

// QuoteString single-quotes s, doubling any embedded single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
