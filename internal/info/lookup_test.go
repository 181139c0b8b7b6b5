package info

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestBannerFormats(t *testing.T) {
	b := NewBuilder(0)
	if _, ok := b.Banner(&discordgo.User{ID: "1", Username: "u"}); ok {
		t.Fatalf("user without a banner should report none")
	}

	embed, ok := b.Banner(&discordgo.User{ID: "1", Username: "u", Banner: "a_hash"})
	if !ok {
		t.Fatalf("expected a banner")
	}
	for _, format := range []string{"[png]", "[jpg]", "[webp]"} {
		if !strings.Contains(embed.Description, format) {
			t.Fatalf("missing %s link in %q", format, embed.Description)
		}
	}
	if !strings.HasSuffix(embed.Image.URL, "/banners/1/a_hash.gif?size=1024") {
		t.Fatalf("animated banner should display as gif, got %q", embed.Image.URL)
	}

	embed, _ = b.Banner(&discordgo.User{ID: "1", Username: "u", Banner: "hash"})
	if !strings.HasSuffix(embed.Image.URL, "hash.png?size=1024") {
		t.Fatalf("static banner should display as png, got %q", embed.Image.URL)
	}
}

func TestNameQueryOverflow(t *testing.T) {
	if got := NameQueryOverflow(strings.Repeat("a", 32)); got != 0 {
		t.Fatalf("32 characters are allowed, got %d over", got)
	}
	if got := NameQueryOverflow(strings.Repeat("é", 35)); got != 3 {
		t.Fatalf("expected 3 over, got %d", got)
	}
}

func TestListMembers(t *testing.T) {
	b := NewBuilder(0)
	guild := &discordgo.Guild{ID: "g", Name: "Guild"}
	if _, ok := b.ListMembers(guild, "zz", nil); ok {
		t.Fatalf("no matches should report none")
	}
	embed, ok := b.ListMembers(guild, "jo", []*discordgo.Member{
		{User: &discordgo.User{ID: "1", Username: "john", Discriminator: "0"}},
		{User: &discordgo.User{ID: "2", Username: "jo_jo", Discriminator: "0"}},
	})
	if !ok || embed.Title != "Users with jo in their name" {
		t.Fatalf("unexpected embed %+v", embed)
	}
	if embed.Description != "`[1]` **john** - 1\n`[2]` **jo\\_jo** - 2" {
		t.Fatalf("unexpected listing %q", embed.Description)
	}
}

func TestEmotesPaging(t *testing.T) {
	b := NewBuilder(0)
	if _, ok := b.Emotes("Guild", nil, 1); ok {
		t.Fatalf("guild without emotes should report none")
	}
	var emojis []*discordgo.Emoji
	for i := 0; i < 17; i++ {
		emojis = append(emojis, &discordgo.Emoji{ID: "9" + strings.Repeat("0", i), Name: "e", Animated: i == 16})
	}
	embed, _ := b.Emotes("Guild", emojis, 2)
	if embed.Title != "Guild emotes list" || embed.Footer.Text != "Page 2/2 (17 entries)" {
		t.Fatalf("unexpected page %+v", embed)
	}
	if !strings.HasPrefix(embed.Description, "`[16]` <:e:") || !strings.Contains(embed.Description, "`[17]` <a:e:") {
		t.Fatalf("unexpected page content %q", embed.Description)
	}
}

func TestNicknames(t *testing.T) {
	got := NewBuilder(0).Nicknames("user", []string{"new", "*old*"})
	if got != "**user's past nicknames:**\n`[1]` new\n`[2]` \\*old\\*" {
		t.Fatalf("unexpected listing %q", got)
	}
}
