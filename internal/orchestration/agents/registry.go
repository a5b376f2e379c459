package agents

// DefaultPriority is the fixed agent preference order used both for
// default-configuration synthesis (§6.1) and for detect_installed()'s
// ordering. Cursor is listed last: it is always wrapped, and is the
// agent most likely to need the timeout fallback.
var DefaultPriority = []string{
	"claude-code", "codex", "copilot", "gemini", "qwen",
	"opencode", "kilocode", "augment", "cursor",
}

// constructors is the static mapping from agent_id to Invoker constructor
// (§4.4's "tagged-union style" registry: a flat map, no runtime type
// hierarchy needed beyond the Invoker interface itself).
var constructors = map[string]func() Invoker{
	"claude-code": newClaudeCode,
	"codex":       newCodex,
	"copilot":     newCopilot,
	"gemini":      newGemini,
	"qwen":        newQwen,
	"opencode":    newOpencode,
	"kilocode":    newKilocode,
	"augment":     newAugment,
	"cursor":      newCursor,
}

// Registry resolves agent ids to Invoker instances and reports which
// agents are actually installed.
type Registry struct {
	invokers map[string]Invoker
}

// NewRegistry constructs every known agent's Invoker eagerly; Invokers are
// cheap, stateless value objects so there is no benefit to lazy construction.
func NewRegistry() *Registry {
	r := &Registry{invokers: make(map[string]Invoker, len(constructors))}
	for id, ctor := range constructors {
		r.invokers[id] = ctor()
	}
	return r
}

// Get returns the Invoker for id, or nil if id is not a known agent.
func (r *Registry) Get(id string) Invoker {
	return r.invokers[id]
}

// Known returns every registered agent id, in DefaultPriority order.
func (r *Registry) Known() []string {
	return append([]string{}, DefaultPriority...)
}

// DetectInstalled returns the ids of installed agents, sorted by
// DefaultPriority.
func (r *Registry) DetectInstalled() []string {
	var installed []string
	for _, id := range DefaultPriority {
		if inv := r.invokers[id]; inv != nil && inv.IsInstalled() {
			installed = append(installed, id)
		}
	}
	return installed
}
