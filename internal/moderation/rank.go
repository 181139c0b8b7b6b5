package moderation

import (
	"math"
	"strings"

	"dredd/internal/utils"

	"github.com/bwmarrin/discordgo"
)

const ownerRank = math.MaxInt32

// Member is a guild member resolved for one invocation.
type Member struct {
	Entity
	Username    string
	DisplayName string
	Nick        string
	RoleIDs     []string
	Bot         bool
}

func (m Member) Mention() string { return utils.UserMention(m.ID) }

func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func (m Member) String() string {
	if m.Username != "" {
		return m.Username
	}
	return m.ID
}

// Hierarchy maps guild roles to ranks: a member's rank is its top role position.
type Hierarchy struct {
	ownerID   string
	positions map[string]int
	roles     []*discordgo.Role
}

func NewHierarchy(ownerID string, roles []*discordgo.Role) *Hierarchy {
	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}
	return &Hierarchy{ownerID: ownerID, positions: positions, roles: roles}
}

func (h *Hierarchy) Rank(userID string, roleIDs []string) int {
	if userID == h.ownerID {
		return ownerRank
	}
	top := 0
	for _, id := range roleIDs {
		if pos, ok := h.positions[id]; ok && pos > top {
			top = pos
		}
	}
	return top
}

func (h *Hierarchy) Member(m *discordgo.Member) Member {
	if m == nil || m.User == nil {
		return Member{}
	}
	display := m.Nick
	if display == "" {
		display = m.User.GlobalName
	}
	if display == "" {
		display = m.User.Username
	}
	return Member{
		Entity: Entity{
			ID:    m.User.ID,
			Rank:  h.Rank(m.User.ID, m.Roles),
			Owner: m.User.ID == h.ownerID,
		},
		Username:    m.User.Username,
		DisplayName: display,
		Nick:        m.Nick,
		RoleIDs:     m.Roles,
		Bot:         m.User.Bot,
	}
}

func (h *Hierarchy) Role(id string) *discordgo.Role {
	for _, role := range h.roles {
		if role.ID == id {
			return role
		}
	}
	return nil
}

// RoleByName finds a role case-insensitively.
func (h *Hierarchy) RoleByName(name string) *discordgo.Role {
	for _, role := range h.roles {
		if strings.EqualFold(role.Name, name) {
			return role
		}
	}
	return nil
}
