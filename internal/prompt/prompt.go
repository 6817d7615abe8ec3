// Package prompt renders the fixed natural-language templates sent to the
// completion provider. Placeholders use single braces ({user_question}) so
// the on-disk template file stays editable in the same format the prompts
// were originally authored in.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

const (
	PlaceholderQuestion = "{user_question}"
	PlaceholderUser     = "{authenticated_user}"
	PlaceholderCode     = "{order_code}"
)

// Template is the base NL-to-SQL prompt, loaded once per process.
type Template struct {
	text string
}

// Load reads the template file and verifies the required placeholders are
// present. A missing placeholder is a configuration error, not something to
// recover from at turn time.
func Load(path string) (Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt template %q: %w", path, err)
	}
	return Parse(string(raw))
}

func Parse(text string) (Template, error) {
	for _, placeholder := range []string{PlaceholderQuestion, PlaceholderUser, PlaceholderCode} {
		if !strings.Contains(text, placeholder) {
			return Template{}, fmt.Errorf("prompt template missing placeholder %s", placeholder)
		}
	}
	return Template{text: text}, nil
}

// Render substitutes the live values. Pure string substitution, no control flow.
func (t Template) Render(question, user, code string) string {
	replacer := strings.NewReplacer(
		PlaceholderQuestion, question,
		PlaceholderUser, user,
		PlaceholderCode, code,
	)
	return replacer.Replace(t.text)
}

// Reflection builds the corrective follow-up sent after a failed parse or
// query. The original rendered prompt is embedded verbatim; only the
// offending response changes between retries.
func Reflection(fullPrompt, llmResponse string) string {
	return fmt.Sprintf(`You were giving the following prompt:

%s

This was your response:

%s

There was an error with the response, either in the output format or the query itself.

Ensure that the following rules are satisfied when correcting your response:
1. SQL is valid DuckDB SQL, given the provided metadata and the DuckDB querying rules
2. The query SPECIFICALLY references the correct table data.csv, and is it properly aliased? (this is the most likely cause of failure)
3. Response is in the correct format ({"sql": <sql_here>} or {"error": <explanation here>}) with no additional text
4. All fields are appropriately named
5. There are no unnecessary sub-queries
6. ALL TABLES are aliased (extremely important)

Rewrite the response and respond ONLY with the valid output format with no additional commentary
`, fullPrompt, llmResponse)
}

// Summary builds the narrative-summary prompt for a successful query result.
// The steering context is appended verbatim when non-empty.
func Summary(question, user, table, additionalContext string) string {
	text := fmt.Sprintf(`A user named %s asked the following question pertaining to their order records:

%s

To answer the question, the following table was returned:

Table:
%s

In a few sentences, summarize the data in the table as it pertains to the original user question. Avoid qualifiers like "based on the data" and do not comment on the structure or metadata of the table itself
`, user, question, table)

	if additionalContext != "" {
		text += fmt.Sprintf(`
The user has provided this additional context:
%s
`, additionalContext)
	}
	return text
}
