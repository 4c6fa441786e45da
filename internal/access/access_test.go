package access

import (
	"testing"

	"guildhall-backend/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestPureChecks(t *testing.T) {
	guild := &domain.Guild{ID: "g1", CreatedBy: "owner"}
	post := &domain.Post{GuildID: "g1", ID: "p1", AuthorID: "author"}

	tests := []struct {
		name      string
		caller    string
		modify    bool
		deletePst bool
		pin       bool
	}{
		{"owner", "owner", true, true, true},
		{"author", "author", false, true, false},
		{"stranger", "stranger", false, false, false},
		{"anonymous", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.modify, CanModifyGuild(guild, tt.caller))
			assert.Equal(t, tt.deletePst, CanDeletePost(post, guild, tt.caller))
			assert.Equal(t, tt.pin, CanPin(guild, tt.caller))
		})
	}

	t.Run("NilEntities", func(t *testing.T) {
		assert.False(t, CanModifyGuild(nil, "owner"))
		assert.False(t, CanDeletePost(nil, guild, "owner"))
		assert.True(t, CanDeletePost(post, nil, "author"))
	})
}

func TestPolicy(t *testing.T) {
	guild := &domain.Guild{ID: "g1", CreatedBy: "owner"}
	post := &domain.Post{GuildID: "g1", ID: "p1", AuthorID: "author"}

	t.Run("EmptyPolicyMatchesPureChecks", func(t *testing.T) {
		var p Policy
		assert.False(t, p.CanDeletePost(post, guild, "mod"))
		assert.True(t, p.CanDeletePost(post, guild, "author"))
		assert.False(t, p.CanReconcile("mod"))
	})

	t.Run("ModeratorMayDeleteButNotPin", func(t *testing.T) {
		p := Policy{Moderators: []string{"mod"}}
		assert.True(t, p.CanDeletePost(post, guild, "mod"))
		assert.False(t, p.CanPin(guild, "mod"))
		assert.False(t, p.CanModifyGuild(guild, "mod"))
		assert.True(t, p.CanReconcile("mod"))
	})

	t.Run("HolderSwapsPolicy", func(t *testing.T) {
		h := NewHolder(Policy{})
		assert.False(t, h.CanDeletePost(post, guild, "mod"))

		h.Set(Policy{Moderators: []string{"mod"}})
		assert.True(t, h.CanDeletePost(post, guild, "mod"))
	})
}
