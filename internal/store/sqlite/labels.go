package sqlite

import (
	"encoding/json"

	"github.com/forgectl/fg/internal/types"
)

// encodeLabels serializes a label list to the structured
// [{name, color?}] encoding.
func encodeLabels(labels []types.Label) ([]byte, error) {
	if labels == nil {
		labels = []types.Label{}
	}
	return json.Marshal(labels)
}

// decodeLabels accepts either the structured [{name, color?}]
// encoding or the legacy flat ["name", ...] encoding and always
// returns the structured form, upgrading legacy rows transparently on
// read per SPEC_FULL.md invariant on label round-tripping.
func decodeLabels(raw []byte) ([]types.Label, error) {
	if len(raw) == 0 {
		return []types.Label{}, nil
	}

	var structured []types.Label
	if err := json.Unmarshal(raw, &structured); err == nil {
		return structured, nil
	}

	var flat []string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	structured = make([]types.Label, len(flat))
	for i, name := range flat {
		structured[i] = types.Label{Name: name}
	}
	return structured, nil
}

func encodeAssignees(assignees []string) ([]byte, error) {
	if assignees == nil {
		assignees = []string{}
	}
	return json.Marshal(assignees)
}

func decodeAssignees(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var assignees []string
	if err := json.Unmarshal(raw, &assignees); err != nil {
		return nil, err
	}
	return assignees, nil
}
