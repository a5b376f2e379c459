package state

import "encoding/json"

// knownWPExecutionFields lists the JSON keys owned by WPExecution itself;
// everything else round-trips through Unknown.
var knownWPExecutionFields = map[string]bool{
	"wp_id": true, "status": true, "implementation": true, "review": true,
	"log_file": true, "worktree_path": true, "last_error": true,
	"fallback_agents_tried": true, "extra_dependencies": true, "base_dependency": true,
}

var knownRunFields = map[string]bool{
	"run_id": true, "feature_slug": true, "started_at": true, "completed_at": true,
	"status": true, "config_hash": true, "concurrency_limit": true,
	"wps_total": true, "wps_completed": true, "wps_failed": true,
	"parallel_peak": true, "total_agent_invocations": true, "work_packages": true,
}

type wpExecutionAlias WPExecution

// MarshalJSON merges the known fields with any preserved Unknown fields.
func (w WPExecution) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(wpExecutionAlias(w))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(known, w.Unknown)
}

// UnmarshalJSON decodes known fields and stashes the rest in Unknown.
func (w *WPExecution) UnmarshalJSON(data []byte) error {
	var alias wpExecutionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*w = WPExecution(alias)
	w.Unknown = extractUnknown(data, knownWPExecutionFields)
	return nil
}

type orchestrationRunAlias OrchestrationRun

// MarshalJSON merges the known fields with any preserved Unknown fields.
func (r OrchestrationRun) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(orchestrationRunAlias(r))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(known, r.Unknown)
}

// UnmarshalJSON decodes known fields and stashes the rest in Unknown.
func (r *OrchestrationRun) UnmarshalJSON(data []byte) error {
	var alias orchestrationRunAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = OrchestrationRun(alias)
	r.Unknown = extractUnknown(data, knownRunFields)
	return nil
}

// extractUnknown returns the subset of data's top-level object whose keys
// are not in known, or nil if there are none.
func extractUnknown(data []byte, known map[string]bool) map[string]any {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var unknown map[string]any
	for k, v := range raw {
		if known[k] {
			continue
		}
		if unknown == nil {
			unknown = make(map[string]any)
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			unknown[k] = val
		}
	}
	return unknown
}

// mergeUnknown adds extra's keys into the JSON object in known, without
// overwriting any key known already defines.
func mergeUnknown(known []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := merged[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
