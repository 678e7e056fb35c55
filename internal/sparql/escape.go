package sparql

import (
	"fmt"
	"strings"
	"time"
)

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapeString renders a literal, quoted and escaped.
func EscapeString(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// EscapeURI renders a URI ref. Angle brackets and whitespace inside the
// value would break out of the term, so they are percent-encoded.
func EscapeURI(uri string) string {
	r := strings.NewReplacer(
		"<", "%3C",
		">", "%3E",
		`"`, "%22",
		" ", "%20",
		"{", "%7B",
		"}", "%7D",
		"\n", "",
		"\r", "",
	)
	return "<" + r.Replace(uri) + ">"
}

// EscapeDateTime renders an xsd:dateTime literal.
func EscapeDateTime(t time.Time) string {
	return fmt.Sprintf(`"%s"^^xsd:dateTime`, t.UTC().Format(time.RFC3339))
}

// EscapeInt renders an xsd:integer literal.
func EscapeInt(i int) string {
	return fmt.Sprintf(`"%d"^^xsd:integer`, i)
}
