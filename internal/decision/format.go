package decision

import "strings"

// Clause keywords start a new line in the formatted output; everything in
// keywords is upper-cased. Formatting is cosmetic only, the query semantics
// never change.
var clauseKeywords = map[string]bool{
	"SELECT": true,
	"FROM":   true,
	"WHERE":  true,
	"GROUP":  true,
	"ORDER":  true,
	"HAVING": true,
	"LIMIT":  true,
	"UNION":  true,
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"ORDER": true, "HAVING": true, "LIMIT": true, "AS": true, "AND": true,
	"OR": true, "NOT": true, "IN": true, "IS": true, "NULL": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true,
	"FULL": true, "ON": true, "DISTINCT": true, "COUNT": true, "SUM": true,
	"AVG": true, "MIN": true, "MAX": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true, "LIKE": true, "BETWEEN": true,
	"ASC": true, "DESC": true, "UNION": true, "ALL": true, "EXISTS": true,
	"CAST": true, "OFFSET": true,
}

// FormatSQL upper-cases keywords and breaks major clauses onto their own
// lines. Quoted strings and identifiers pass through untouched.
func FormatSQL(sql string) string {
	tokens := tokenize(strings.TrimSpace(sql))
	var out strings.Builder
	for i, token := range tokens {
		word := token
		if isBareWord(token) {
			upper := strings.ToUpper(token)
			if keywords[upper] {
				word = upper
			}
		}
		switch {
		case i == 0:
			out.WriteString(word)
		case clauseKeywords[word] && isBareWord(token):
			out.WriteString("\n")
			out.WriteString(word)
		default:
			out.WriteString(" ")
			out.WriteString(word)
		}
	}
	return out.String()
}

// tokenize splits on whitespace while keeping single- and double-quoted
// runs intact.
func tokenize(sql string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range sql {
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isBareWord(token string) bool {
	for _, r := range token {
		if r == '\'' || r == '"' {
			return false
		}
	}
	return true
}
