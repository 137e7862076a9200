package app

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/ui/style"
)

var descriptionStyle = lipgloss.NewStyle().Foreground(style.Ash)

// TaskTree renders every registered task, expanding compositions the way
// gulp --tasks does.
func TaskTree(registry *domain.Registry) string {
	t := tree.Root("Tasks for " + registry.Root())
	for _, name := range registry.Names() {
		task, _ := registry.Get(name)
		t.Child(taskNode(registry, task, map[string]bool{}))
	}
	return t.String()
}

func taskNode(registry *domain.Registry, task domain.Task, seen map[string]bool) any {
	label := task.Name.String()
	if task.Description != "" {
		label += "  " + descriptionStyle.Render(task.Description)
	}
	if !task.Kind.IsComposite() {
		return label
	}

	// Validated registries are acyclic; seen only guards rendering.
	seen[task.Name.String()] = true
	defer delete(seen, task.Name.String())

	group := tree.Root("<" + task.Kind.String() + ">")
	for _, child := range task.Children {
		sub, ok := registry.Get(child.String())
		if !ok || seen[child.String()] {
			group.Child(child.String())
			continue
		}
		group.Child(taskNode(registry, sub, seen))
	}
	return tree.Root(label).Child(group)
}
