package agent

// Profile is the declarative part of an agent: who it is and what it is told.
type Profile struct {
	ID           string
	Name         string
	Role         string
	Instructions []string
}

const (
	IDWebSearch = "web-search"
	IDFinancial = "financial"
	IDMulti     = "multi"
)

var (
	WebSearchProfile = Profile{
		ID:           IDWebSearch,
		Name:         "Web Search Agent",
		Role:         "Search the web for information",
		Instructions: []string{"Always include the sources"},
	}

	FinancialProfile = Profile{
		ID:           IDFinancial,
		Name:         "Financial Agent",
		Role:         "Analyze financial data and provide insights",
		Instructions: []string{"Use tables to display the Data"},
	}

	// The composite agent's instruction order is part of its prompt.
	MultiProfile = Profile{
		ID:   IDMulti,
		Name: "Multi Agent",
		Role: "Coordinate the web search and financial agents",
		Instructions: []string{
			"Always include the sources",
			"Use tables to display the Data",
		},
	}
)
