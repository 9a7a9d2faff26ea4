package ui

import "finagent/internal/agent"

var examples = map[string][]string{
	agent.IDWebSearch: {
		"What are the latest developments in AI?",
		"What is the current situation in global markets?",
	},
	agent.IDFinancial: {
		"Show me AAPL stock performance and analyst recommendations",
		"Compare the fundamentals of MSFT and GOOGL",
	},
	agent.IDMulti: {
		"What is the current stock price of NVIDIA and any recent news about AI chips?",
		"How are recent tech layoffs affecting stock prices of major tech companies?",
	},
}

// Examples returns the sidebar queries for an agent.
func Examples(agentID string) []string {
	return examples[agentID]
}
