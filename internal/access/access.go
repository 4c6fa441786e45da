// Package access decides whether a caller may mutate a guild or post. All
// checks are pure functions over entities that were already loaded.
package access

import (
	"slices"
	"sync"

	"guildhall-backend/internal/domain"
)

// CanModifyGuild reports whether callerID owns the guild.
func CanModifyGuild(guild *domain.Guild, callerID string) bool {
	return guild != nil && callerID != "" && guild.CreatedBy == callerID
}

// CanDeletePost allows the post's author or the guild owner.
func CanDeletePost(post *domain.Post, guild *domain.Guild, callerID string) bool {
	if post == nil || callerID == "" {
		return false
	}
	return post.AuthorID == callerID || CanModifyGuild(guild, callerID)
}

// CanPin allows only the guild owner.
func CanPin(guild *domain.Guild, callerID string) bool {
	return CanModifyGuild(guild, callerID)
}

// Policy is the per-environment access configuration. Moderators may delete
// any post and trigger reconciliation; they cannot pin or edit guilds.
type Policy struct {
	Moderators []string `yaml:"moderators"`
}

// IsModerator reports whether userID is a configured moderator.
func (p Policy) IsModerator(userID string) bool {
	return userID != "" && slices.Contains(p.Moderators, userID)
}

func (p Policy) CanModifyGuild(guild *domain.Guild, callerID string) bool {
	return CanModifyGuild(guild, callerID)
}

func (p Policy) CanDeletePost(post *domain.Post, guild *domain.Guild, callerID string) bool {
	return CanDeletePost(post, guild, callerID) || (post != nil && p.IsModerator(callerID))
}

func (p Policy) CanPin(guild *domain.Guild, callerID string) bool {
	return CanPin(guild, callerID)
}

// CanReconcile gates the administrative reconciliation endpoint.
func (p Policy) CanReconcile(callerID string) bool {
	return p.IsModerator(callerID)
}

// Checker is what the service consults. Policy and *Holder implement it.
type Checker interface {
	CanModifyGuild(guild *domain.Guild, callerID string) bool
	CanDeletePost(post *domain.Post, guild *domain.Guild, callerID string) bool
	CanPin(guild *domain.Guild, callerID string) bool
	CanReconcile(callerID string) bool
}

// Holder holds a Policy that can be swapped at runtime, for example by the
// config watcher when the policy file changes.
type Holder struct {
	mu     sync.RWMutex
	policy Policy
}

// NewHolder creates a Holder with an initial policy.
func NewHolder(p Policy) *Holder {
	return &Holder{policy: p}
}

// Policy returns the current policy.
func (h *Holder) Policy() Policy {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.policy
}

// Set replaces the current policy.
func (h *Holder) Set(p Policy) {
	h.mu.Lock()
	h.policy = p
	h.mu.Unlock()
}

func (h *Holder) CanModifyGuild(guild *domain.Guild, callerID string) bool {
	return h.Policy().CanModifyGuild(guild, callerID)
}

func (h *Holder) CanDeletePost(post *domain.Post, guild *domain.Guild, callerID string) bool {
	return h.Policy().CanDeletePost(post, guild, callerID)
}

func (h *Holder) CanPin(guild *domain.Guild, callerID string) bool {
	return h.Policy().CanPin(guild, callerID)
}

func (h *Holder) CanReconcile(callerID string) bool {
	return h.Policy().CanReconcile(callerID)
}
