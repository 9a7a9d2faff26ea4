package agent

import (
	"fmt"
	"strings"
)

const teamLeaderPreamble = `You are the leader of a team of AI Agents.
- You can either respond directly or transfer tasks to other Agents in your team depending on the tools available to them.
- If you transfer a task to another Agent, make sure to include a clear description of the task and the expected output.
- You must always validate the output of the other Agents before responding to the user, you can re-assign the task if you are not satisfied with the result.`

func buildSystemPrompt(a *Agent) string {
	var b strings.Builder

	if len(a.team) > 0 {
		b.WriteString(teamLeaderPreamble)
		b.WriteString("\n\n## Agents in your team:\n")
		for i, m := range a.team {
			fmt.Fprintf(&b, "Agent %d:\nName: %s\nRole: %s\n", i+1, m.name, m.role)
			if names := m.ToolNames(); len(names) > 0 {
				fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(names, ", "))
			}
		}
		b.WriteString("\n")
	} else if a.role != "" {
		fmt.Fprintf(&b, "Your name is %s.\nYour role is: %s\n\n", a.name, a.role)
	}

	var directives []string
	directives = append(directives, a.instructions...)
	if a.format == FormatMarkdown {
		directives = append(directives, "Use markdown to format your answers.")
	}
	if len(directives) > 0 {
		b.WriteString("## Instructions\n")
		for _, d := range directives {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	return strings.TrimSpace(b.String())
}
