package domain

import (
	"testing"

	appErrors "guildhall-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildIsTrending(t *testing.T) {
	tests := []struct {
		name  string
		guild Guild
		want  bool
	}{
		{"quiet guild", Guild{MemberCount: 4, PostCount: 2}, false},
		{"enough members", Guild{MemberCount: 5}, true},
		{"enough posts", Guild{PostCount: 3}, true},
		{"stored flag", Guild{Trending: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guild.IsTrending())
		})
	}
}

func TestValidateNewGuild(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		g := NewGuild{Name: "Pokemon Traders", Description: "Trade cards", Category: "TCG", OwnerID: "user-a"}
		assert.NoError(t, Validate(g))
	})

	t.Run("MissingFieldsAreListed", func(t *testing.T) {
		g := NewGuild{Name: "  ", Category: "TCG", OwnerID: "user-a"}
		g.Normalize()

		err := Validate(g)
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "description is required")
	})
}

func TestValidateNewPost(t *testing.T) {
	t.Run("MissingContentAndType", func(t *testing.T) {
		err := Validate(NewPost{GuildID: "g1", AuthorID: "u1"})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
		assert.Contains(t, err.Error(), "content is required")
		assert.Contains(t, err.Error(), "postType is required")
	})

	t.Run("NegativeCardPrice", func(t *testing.T) {
		err := Validate(NewPost{
			GuildID: "g1", AuthorID: "u1", Content: "WTS Charizard", PostType: "sale",
			Card: &Card{Game: "Pokemon", Price: -1},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "price must be at least 0")
	})

	t.Run("CardIsOptional", func(t *testing.T) {
		assert.NoError(t, Validate(NewPost{GuildID: "g1", AuthorID: "u1", Content: "hi", PostType: "chat"}))
	})
}
