package server

import "fmt"

type UnknownPromptError struct {
	Name string
}

func (e *UnknownPromptError) Error() string {
	return fmt.Sprintf("Unknown prompt: %s", e.Name)
}

// UnsupportedSchemeError is returned for every resource read; no resource
// scheme is served.
type UnsupportedSchemeError struct {
	URI    string
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("Unsupported URI scheme: %s", e.Scheme)
}

// ToolError reports a failed tool execution. The message embeds the
// underlying diagnostic verbatim.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("Error executing tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
