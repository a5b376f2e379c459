// Package depgraph parses work-package frontmatter into a dependency DAG,
// validates it, and answers readiness queries against a run's state.
package depgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/kittify/orchestrator/internal/orchestration/state"
)

// WorkPackage is the static, read-only description of one WP loaded from
// its frontmatter file.
type WorkPackage struct {
	WPID         string
	Title        string
	Dependencies []string
	PromptPath   string
}

// Graph is the adjacency-list representation of a feature's WP dependencies.
type Graph struct {
	nodes map[string]*WorkPackage
	// order is the lexicographic WP id order, used for reproducible
	// ready-set tie-breaking.
	order []string
}

type frontmatter struct {
	WorkPackageID string   `yaml:"work_package_id"`
	Title         string   `yaml:"title"`
	Dependencies  []string `yaml:"dependencies"`
}

const frontmatterDelim = "---"

// frontmatterCache caches parsed frontmatter keyed by "path:mtime" so
// repeated Build calls in one process do not re-parse unchanged WP files.
var frontmatterCache, _ = lru.New[string, frontmatter](256)

// Build reads every *.md file directly under tasksDir, parses its
// frontmatter, and assembles the adjacency list. The filename-derived id is
// only a fallback; the frontmatter's work_package_id is authoritative.
func Build(tasksDir string) (*Graph, []string, error) {
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		return nil, nil, fmt.Errorf("depgraph: read %s: %w", tasksDir, err)
	}

	g := &Graph{nodes: make(map[string]*WorkPackage)}
	var warnings []string

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(tasksDir, e.Name())
		fm, err := parseFrontmatter(path)
		if err != nil {
			return nil, nil, fmt.Errorf("depgraph: %s: %w", path, err)
		}
		if fm.WorkPackageID == "" {
			return nil, nil, fmt.Errorf("depgraph: %s: missing work_package_id", path)
		}

		fileDerived := strings.TrimSuffix(e.Name(), ".md")
		if fileDerived != fm.WorkPackageID {
			warnings = append(warnings, fmt.Sprintf(
				"depgraph: %s: filename-derived id %q disagrees with frontmatter id %q; frontmatter wins",
				path, fileDerived, fm.WorkPackageID))
		}

		if _, dup := g.nodes[fm.WorkPackageID]; dup {
			return nil, nil, fmt.Errorf("depgraph: duplicate work_package_id %q (file %s)", fm.WorkPackageID, path)
		}

		g.nodes[fm.WorkPackageID] = &WorkPackage{
			WPID:         fm.WorkPackageID,
			Title:        fm.Title,
			Dependencies: fm.Dependencies,
			PromptPath:   path,
		}
	}

	g.order = make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		g.order = append(g.order, id)
	}
	sort.Strings(g.order)

	return g, warnings, nil
}

func parseFrontmatter(path string) (frontmatter, error) {
	info, err := os.Stat(path)
	if err != nil {
		return frontmatter{}, err
	}
	cacheKey := fmt.Sprintf("%s:%d", path, info.ModTime().UnixNano())
	if cached, ok := frontmatterCache.Get(cacheKey); ok {
		return cached, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return frontmatter{}, err
	}
	// Strip a UTF-8 BOM if present, the same tolerance the rest of the
	// system's frontmatter reader applies.
	content := strings.TrimPrefix(string(raw), "\xef\xbb\xbf")
	body := strings.TrimLeft(content, "\r\n \t")

	if !strings.HasPrefix(body, frontmatterDelim) {
		return frontmatter{}, fmt.Errorf("no frontmatter block found")
	}
	rest := body[len(frontmatterDelim):]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return frontmatter{}, fmt.Errorf("unterminated frontmatter block")
	}
	block := rest[:end]

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return frontmatter{}, fmt.Errorf("invalid frontmatter yaml: %w", err)
	}

	frontmatterCache.Add(cacheKey, fm)
	return fm, nil
}

// colorState drives the three-color DFS cycle check.
type colorState int

const (
	white colorState = iota // unvisited
	gray                    // on-path
	black                   // done
)

// Validate rejects unknown dependency references, self-edges, and cycles.
// On the first cycle found, it reports exactly the WP ids on that cycle.
func Validate(g *Graph) error {
	for id, wp := range g.nodes {
		for _, dep := range wp.Dependencies {
			if dep == id {
				return fmt.Errorf("depgraph: %s references itself as a dependency", id)
			}
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("depgraph: %s depends on unknown work package %s", id, dep)
			}
		}
	}

	colors := make(map[string]colorState, len(g.order))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range g.nodes[id].Dependencies {
			switch colors[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return cycleError(stack, dep)
			case black:
				// already fully explored, no cycle through here
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for _, id := range g.order {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleError(stack []string, closesAt string) error {
	start := 0
	for i, id := range stack {
		if id == closesAt {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, stack[start:]...), closesAt)
	return fmt.Errorf("depgraph: cycle detected: %s", strings.Join(cycle, " -> "))
}

// Ready returns the work packages whose status is pending and whose every
// dependency has status completed, in stable lexicographic order.
func Ready(g *Graph, run *state.OrchestrationRun) []string {
	var ready []string
	for _, id := range g.order {
		exec := run.WorkPackages[id]
		if exec == nil || exec.Status != state.WPPending {
			continue
		}
		allDepsComplete := true
		for _, dep := range g.nodes[id].Dependencies {
			depExec := run.WorkPackages[dep]
			if depExec == nil || depExec.Status != state.WPCompleted {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, id)
		}
	}
	return ready
}

// Dependents returns the WP ids that directly depend on wpID.
func Dependents(g *Graph, wpID string) []string {
	var out []string
	for _, id := range g.order {
		for _, dep := range g.nodes[id].Dependencies {
			if dep == wpID {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// Get returns the WorkPackage for id, or nil if unknown.
func (g *Graph) Get(id string) *WorkPackage { return g.nodes[id] }

// All returns every WP id in lexicographic order.
func (g *Graph) All() []string { return append([]string{}, g.order...) }

// BaseDependency picks the deterministic base dependency for worktree
// branching (§6.3): none for zero dependencies, the sole dependency for
// one, and the lexicographically-first for multiple, with the remainder
// recorded for manual integration.
func BaseDependency(wp *WorkPackage) (base string, extras []string) {
	if len(wp.Dependencies) == 0 {
		return "", nil
	}
	sorted := append([]string{}, wp.Dependencies...)
	sort.Strings(sorted)
	return sorted[0], sorted[1:]
}
