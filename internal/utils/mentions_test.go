package utils

import "testing"

func TestParseSnowflakes(t *testing.T) {
	ids, invalid := ParseSnowflakes("<@175928847299117063>, <@!80351110224678912> 123456789012345678 nope")
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %v", ids)
	}
	if ids[0] != "175928847299117063" || ids[1] != "80351110224678912" || ids[2] != "123456789012345678" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if len(invalid) != 1 || invalid[0] != "nope" {
		t.Fatalf("unexpected invalid tokens %v", invalid)
	}
}

func TestParseSnowflakesRejectsRoleMentions(t *testing.T) {
	ids, invalid := ParseSnowflakes("<@&175928847299117063>")
	if len(ids) != 0 || len(invalid) != 1 {
		t.Fatalf("role mention should not parse as a user: ids=%v invalid=%v", ids, invalid)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 5); got != "ab..." {
		t.Fatalf("unexpected truncate result %q", got)
	}
	if got := Truncate("abc", 5); got != "abc" {
		t.Fatalf("short strings must be kept, got %q", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("**bold** _it_ `code`"); got != "\\*\\*bold\\*\\* \\_it\\_ \\`code\\`" {
		t.Fatalf("unexpected escape result %q", got)
	}
	if got := EscapeMarkdown("plain name"); got != "plain name" {
		t.Fatalf("plain text must be kept, got %q", got)
	}
}
