package linear

import "github.com/forgectl/fg/internal/types"

// openStateTypes and closedStateTypes are Linear's workflow state
// "type" tag values, grouped onto the normalized {open, closed}
// state per SPEC_FULL.md §4.2 Adapter B.
var (
	openStateTypes  = map[string]bool{"backlog": true, "unstarted": true, "started": true}
	closedStateTypes = map[string]bool{"completed": true, "canceled": true}
)

// normalizedState maps a Linear workflow state onto {open, closed}.
// An unrecognized type (a future Linear state kind) defaults to open,
// since treating an unknown state as closed would silently hide an
// issue from default list views.
func normalizedState(state State) types.State {
	if closedStateTypes[state.Type] {
		return types.StateClosed
	}
	return types.StateOpen
}

// stateIDFor returns the state cache's best Linear state ID for a
// target normalized state, preferring the cached OpenStateID for
// "open" and the first closed-typed state otherwise.
func (sc *StateCache) stateIDFor(target types.State) string {
	if target == types.StateOpen {
		return sc.OpenStateID
	}
	for _, s := range sc.States {
		if closedStateTypes[s.Type] {
			return s.ID
		}
	}
	if len(sc.States) > 0 {
		return sc.States[0].ID
	}
	return ""
}

// toIssue translates a Linear-native issue into the normalized record.
// Linear's opaque UUID becomes NativeID; the team-prefixed identifier
// is the display Key.
func toIssue(li *Issue) *types.Issue {
	labels := make([]types.Label, 0, len(li.Labels.Nodes))
	for _, l := range li.Labels.Nodes {
		labels = append(labels, types.Label{Name: l.Name})
	}

	var assignees []string
	if li.Assignee != nil {
		handle := li.Assignee.DisplayName
		if handle == "" {
			handle = li.Assignee.Email
		}
		assignees = []string{handle}
	}

	return &types.Issue{
		Key:       li.Identifier,
		NativeID:  li.ID,
		Title:     li.Title,
		Body:      li.Description,
		State:     normalizedState(li.State),
		Labels:    labels,
		Assignees: assignees,
		CreatedAt: li.CreatedAt,
		UpdatedAt: li.UpdatedAt,
		Forge:     types.ForgeLinear,
	}
}
