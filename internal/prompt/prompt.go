// Package prompt renders the instruction sent to the completion model.
package prompt

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed script_prompt.tmpl
var scriptPrompt string

var scriptTemplate = template.Must(template.New("script").Parse(scriptPrompt))

// Example queries the model should be able to handle.
var examples = []string{
	"average mobile_speed",
	"top 10 mobile_speed values",
	"compare average mobile_speed between trip 4 and trip 5",
	"min/median/max of mobile_speed",
	"correlation between temperature and voltage signals",
}

// df helper signatures, one per line.
var helpers = []string{
	"df.numeric(values) -> number[]        coerce + drop null/NaN/non-numeric",
	"df.column(rows, field) -> any[]       pluck field from a list of objects",
	"df.mean(xs), df.median(xs), df.min(xs), df.max(xs), df.sum(xs), df.std(xs) -> number",
	"df.count(xs) -> number",
	"df.top(xs, n) -> number[]             n largest, descending",
	"df.corr(xs, ys) -> number             Pearson correlation of equal-length series",
}

type data struct {
	Query    string
	Examples []string
	Helpers  []string
}

// Build renders the script-generation instruction for query. The query is
// embedded verbatim; rendering is deterministic.
func Build(query string) string {
	var b strings.Builder
	// The template is parsed at init and only reads plain fields.
	if err := scriptTemplate.Execute(&b, data{
		Query:    query,
		Examples: examples,
		Helpers:  helpers,
	}); err != nil {
		panic("prompt: render: " + err.Error())
	}
	return b.String()
}
