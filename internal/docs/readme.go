// Package docs renders the registered commands, grouped by category, for the
// help command and for README generation.
package docs

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

type Entry struct {
	Name        string
	Description string
}

type Section struct {
	Category string
	Commands []Entry
}

// Sections groups the registry by category. Categories sort by weight (lower
// first, unknown categories last) and commands by name.
func Sections(registry *cmd.Registry, weights map[string]int) []Section {
	byCategory := make(map[string][]Entry)
	for _, c := range registry.GetAll() {
		cat := "Other"
		if meta, ok := command.Meta(c); ok && meta.Category() != "" {
			cat = meta.Category()
		}
		byCategory[cat] = append(byCategory[cat], Entry{Name: "/" + c.Name(), Description: c.Description()})
	}

	weight := func(cat string) int {
		if w, ok := weights[cat]; ok {
			return w
		}
		return 1 << 20
	}

	out := make([]Section, 0, len(byCategory))
	for cat, entries := range byCategory {
		out = append(out, Section{Category: cat, Commands: entries})
	}
	slices.SortFunc(out, func(a, b Section) int {
		if d := weight(a.Category) - weight(b.Category); d != 0 {
			return d
		}
		return strings.Compare(a.Category, b.Category)
	})
	return out
}

// Markdown renders sections the way the README lists them.
func Markdown(sections []Section) string {
	var buf bytes.Buffer
	for i, s := range sections {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", s.Category)
		for _, e := range s.Commands {
			fmt.Fprintf(&buf, "- **%s** - %s\n", e.Name, e.Description)
		}
	}
	return buf.String()
}

// UpdateReadme executes the template at tmplPath with the rendered command
// sections and writes the result to outPath.
func UpdateReadme(registry *cmd.Registry, weights map[string]int, tmplPath, outPath string) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return err
	}

	data := struct {
		CommandSections string
	}{
		CommandSections: Markdown(Sections(registry, weights)),
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0644)
}
