// Package migrations embeds the SurrealQL schema files. Every statement is
// written to be idempotent so the set can be applied on each startup.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.surql
var files embed.FS

// All returns the contents of every .surql file in name order
func All() ([]string, error) {
	names, err := fs.Glob(files, "*.surql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		out = append(out, string(content))
	}
	return out, nil
}
