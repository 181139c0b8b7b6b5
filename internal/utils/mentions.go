package utils

import (
	"strings"
	"unicode/utf8"
)

func UserMention(id string) string { return "<@" + id + ">" }

func ChannelMention(id string) string { return "<#" + id + ">" }

func RoleMention(id string) string { return "<@&" + id + ">" }

// ParseSnowflakes extracts user ids from mentions (<@id>, <@!id>) or bare ids.
// Tokens may be separated by spaces or commas. Unparseable tokens are returned separately.
func ParseSnowflakes(input string) (ids []string, invalid []string) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
	for _, field := range fields {
		token := strings.TrimPrefix(strings.TrimSuffix(field, ">"), "<@")
		token = strings.TrimPrefix(token, "!")
		if isSnowflake(token) {
			ids = append(ids, token)
			continue
		}
		invalid = append(invalid, field)
	}
	return ids, invalid
}

func isSnowflake(value string) bool {
	if len(value) < 15 || len(value) > 20 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Truncate cuts value to at most max runes, marking the cut with an ellipsis.
func Truncate(value string, max int) string {
	if max <= 0 || utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

var markdownEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`", "|", `\|`, ">", `\>`)

// EscapeMarkdown makes user supplied text render literally in a message.
func EscapeMarkdown(value string) string {
	return markdownEscaper.Replace(value)
}
