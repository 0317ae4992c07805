// file: internal/tools/prompts.go
package tools

import "fmt"

const (
	generatePersona = "You are a professional code generation assistant. You write high-quality, runnable code."
	optimizePersona = "You are a code optimization expert. You improve code toward a specific goal."
	explainPersona  = "You are a code explanation expert. You make complex code easy to understand."
)

func generatePrompt(language, description string) string {
	return fmt.Sprintf(`Write %s code that does the following:
%s

Return only the code, without explanation. The code must be complete, runnable and follow best practices.`,
		language, description)
}

func optimizePrompt(language, code, goal string) string {
	return fmt.Sprintf("Optimize the following %s code. Optimization goal: %s\n\n"+
		"Original code:\n```%s\n%s\n```\n\n"+
		"Provide the optimized code and briefly describe the changes you made.",
		language, goal, language, code)
}

func explainPrompt(language, code string) string {
	return fmt.Sprintf("Explain in detail what the following %s code does and how it works:\n\n"+
		"```%s\n%s\n```\n\n"+
		"Give a clear, detailed explanation covering:\n"+
		"1. The overall purpose of the code\n"+
		"2. How the key parts work\n"+
		"3. The main algorithms or techniques used\n"+
		"4. Any edge cases or limitations",
		language, language, code)
}

func generateHeader(language, description string) string {
	return fmt.Sprintf("# %s code - description: %s", language, description)
}

func optimizeHeader(language, goal string) string {
	return fmt.Sprintf("# Optimized %s code - goal: %s", language, goal)
}

func explainHeader(language string) string {
	return fmt.Sprintf("# %s code explanation", language)
}

// withHeader lays out a tool result as header, blank line, body.
func withHeader(header, body string) string {
	return fmt.Sprintf("%s\n\n%s\n", header, body)
}
