package models

const (
	PageSeparator    = "\n"
	ContextSeparator = " "
)

var (
	// SupplyChainPromptTemplate is rendered with the selected chunks joined by
	// ContextSeparator and the literal user question.
	SupplyChainPromptTemplate = `
You are a supply chain risk analysis assistant.
Use the following supplier/tariff information to answer the question.

Context:
{{.context}}

Question: {{.query}}
Answer:
`
)
