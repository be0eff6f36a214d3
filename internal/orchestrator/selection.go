package orchestrator

import "seadog/internal/model"

// GroupPick asks for up to Count units from one squad. Picks are total over
// group size: a squad with fewer members contributes what it has, and an
// empty squad contributes nothing.
type GroupPick struct {
	Group string
	Count int
}

// SelectionPlan is the explicit mapping from mission type to team
// composition. Every auto-selection starts with a command unit and, when the
// overwatch squad is populated, ends with an overwatch unit.
type SelectionPlan struct {
	CommandGroup   string
	OverwatchGroup string
	ByType         map[model.MissionType][]GroupPick
}

// DefaultSelectionPlan mirrors the standing squad organization: alpha holds
// command, bravo direct action, charlie specialists, delta overwatch.
func DefaultSelectionPlan() SelectionPlan {
	return SelectionPlan{
		CommandGroup:   "alpha",
		OverwatchGroup: "delta",
		ByType: map[model.MissionType][]GroupPick{
			model.MissionDirectAction: {
				{Group: "bravo", Count: 2},
			},
			model.MissionSpecialRecon: {
				{Group: "charlie", Count: 2},
			},
			model.MissionUnconventionalWarfare: {
				{Group: "bravo", Count: 1},
				{Group: "charlie", Count: 1},
			},
			model.MissionInternalDefense: {
				{Group: "charlie", Count: 1},
				{Group: "bravo", Count: 1},
			},
		},
	}
}

// autoSelect assembles a team for the mission type. It indexes no group
// beyond its actual size and deduplicates across picks.
func (o *Orchestrator) autoSelect(missionType model.MissionType) []string {
	var selected []string
	seen := make(map[string]bool)

	take := func(group string, count int) {
		ops := o.registry.ByGroup(group)
		if count > len(ops) {
			count = len(ops)
		}
		for _, op := range ops[:count] {
			id := op.Identity().ID
			if !seen[id] {
				seen[id] = true
				selected = append(selected, id)
			}
		}
	}

	take(o.plan.CommandGroup, 1)
	for _, pick := range o.plan.ByType[missionType] {
		take(pick.Group, pick.Count)
	}
	take(o.plan.OverwatchGroup, 1)

	return selected
}
