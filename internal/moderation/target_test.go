package moderation

import "testing"

func TestManyTargetsDedupes(t *testing.T) {
	spec := ManyTargets("1", "2", "1", "", "3")
	if spec.Kind() != TargetMany || spec.Len() != 3 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	ids := spec.IDs()
	if ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Fatalf("order not preserved: %v", ids)
	}
	ids[0] = "changed"
	if spec.IDs()[0] != "1" {
		t.Fatalf("IDs must return a copy")
	}
}

func TestEmptyTargets(t *testing.T) {
	if !ManyTargets().Empty() || !SingleTarget("").Empty() || !NoTarget().Empty() {
		t.Fatalf("expected empty specs")
	}
	if SingleTarget("42").Kind() != TargetSingle {
		t.Fatalf("expected single target")
	}
}

func TestParseTargets(t *testing.T) {
	spec, invalid := ParseTargets("<@175928847299117063> <@!175928847299117063> 80351110224678912 nope")
	if spec.Len() != 2 {
		t.Fatalf("expected 2 unique targets, got %v", spec.IDs())
	}
	if len(invalid) != 1 || invalid[0] != "nope" {
		t.Fatalf("unexpected invalid tokens %v", invalid)
	}
}
