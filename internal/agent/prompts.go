package agent

import (
	"fmt"
	"strings"

	"AutoAgent/internal/memory"
	"AutoAgent/internal/storage"
)

// NoFurtherAction 是反思阶段表示无需后续任务的约定回复，按区分大小写的子串匹配。
const NoFurtherAction = "No further action needed."

func generationPrompt(objective string, recent []storage.Record, related []memory.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Objective: %s\n", objective)
	if len(recent) > 0 {
		sb.WriteString("Previous results (for context):\n")
		for i, record := range recent {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(memory.Text(record.Task, record.Result))
		}
		sb.WriteString("\n")
	}
	if len(related) > 0 {
		sb.WriteString("Related memories:\n")
		for _, match := range related {
			fmt.Fprintf(&sb, "- (%.2f) %s\n", match.Score, strings.ReplaceAll(memory.Text(match.Metadata.Task, match.Metadata.Result), "\n", " "))
		}
	}
	sb.WriteString("Generate a list of tasks to achieve the objective, considering the above context.")
	return sb.String()
}

func executionPrompt(task string) string {
	return "Execute the following task: " + task
}

func reflectionPrompt(task, result string) string {
	return "Reflect on the result of the following task and suggest improvements or follow-up tasks.\n" +
		"Task: " + task + "\nResult: " + result + "\n" +
		"If improvements or follow-ups are needed, list them as new tasks. Otherwise, reply '" + NoFurtherAction + "'"
}
