package moderation

import "dredd/internal/utils"

type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetSingle
	TargetMany
)

// TargetSpec is the member selector of a command, resolved once at command entry.
type TargetSpec struct {
	kind TargetKind
	ids  []string
}

func NoTarget() TargetSpec { return TargetSpec{} }

func SingleTarget(id string) TargetSpec {
	if id == "" {
		return NoTarget()
	}
	return TargetSpec{kind: TargetSingle, ids: []string{id}}
}

// ManyTargets keeps the first occurrence of each id in order.
func ManyTargets(ids ...string) TargetSpec {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return NoTarget()
	}
	return TargetSpec{kind: TargetMany, ids: unique}
}

// ParseTargets reads a greedy member list of mentions or ids.
func ParseTargets(input string) (TargetSpec, []string) {
	ids, invalid := utils.ParseSnowflakes(input)
	return ManyTargets(ids...), invalid
}

func (t TargetSpec) Kind() TargetKind { return t.kind }

func (t TargetSpec) Empty() bool { return t.kind == TargetNone }

func (t TargetSpec) Len() int { return len(t.ids) }

func (t TargetSpec) IDs() []string {
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}
