// Package prompts holds the static prompt bodies served by the MCP server.
package prompts

import (
	_ "embed"
)

//go:embed planner.md
var plannerText string

//go:embed duckdb.md
var duckdbText string

// Prompt is a static prompt body and the metadata advertised for it.
type Prompt struct {
	Name              string
	Description       string
	ResultDescription string
	Text              string
}

var (
	Planner = Prompt{
		Name:              "pianificatore-ui",
		Description:       "Contesto iniziale e linee guida per pianificare e allocare risorse su progetti usando DuckDB/MotherDuck; include esempi di INSERT/UPDATE.",
		ResultDescription: "Prompt di avvio per pianificatore_ui: pianificazione risorse, viste, e INSERT/UPDATE consentiti.",
		Text:              plannerText,
	}

	DuckDB = Prompt{
		Name:              "duckdb-motherduck-initial-prompt",
		Description:       "Prompt iniziale per connettersi a DuckDB/MotherDuck e iniziare a lavorare.",
		ResultDescription: "Prompt iniziale per interagire con DuckDB/MotherDuck",
		Text:              duckdbText,
	}
)

// All returns the prompts in the order they are advertised.
func All() []Prompt {
	return []Prompt{Planner, DuckDB}
}
