package moderation

// Entity is anything with a place in a guild's role hierarchy.
type Entity struct {
	ID    string
	Rank  int
	Owner bool
}

type DenyCause int

const (
	CauseNone DenyCause = iota
	CauseSelfTarget
	CauseOutranksActor
	CauseExecutorRank
)

func (c DenyCause) String() string {
	switch c {
	case CauseSelfTarget:
		return "cannot target yourself"
	case CauseOutranksActor:
		return "higher or equal to you"
	case CauseExecutorRank:
		return "higher or equal to me"
	default:
		return "allowed"
	}
}

type Decision struct {
	Allowed bool
	Cause   DenyCause
}

// CanActOn decides whether actor may have executor mutate target. First matching rule wins.
func CanActOn(actor, target, executor Entity) Decision {
	if target.ID == actor.ID {
		return Decision{Cause: CauseSelfTarget}
	}
	if target.Rank >= actor.Rank && !actor.Owner {
		return Decision{Cause: CauseOutranksActor}
	}
	if target.Rank >= executor.Rank {
		return Decision{Cause: CauseExecutorRank}
	}
	return Decision{Allowed: true}
}
