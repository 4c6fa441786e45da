// Package handlers adapts the guild service to HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"guildhall-backend/internal/domain"
	"guildhall-backend/internal/service/guild"
	"guildhall-backend/pkg/api"
	appErrors "guildhall-backend/pkg/errors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body is a validation
// error, as is any unknown field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.NewValidationError("request body is required")
		}
		return appErrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.NewValidationError(name + " must be a non-negative integer")
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, fallback bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.NewValidationError(name + " must be true or false")
	}
	return v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toGuildResponse(v guild.GuildView) api.GuildResponse {
	return api.GuildResponse{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		Category:    v.Category,
		Image:       v.Image,
		MemberCount: v.MemberCount,
		PostCount:   v.PostCount,
		IsPrivate:   v.IsPrivate,
		Rules:       v.Rules,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   formatTime(v.CreatedAt),
		Trending:    v.IsTrending,
		IsJoined:    v.IsJoined,
	}
}

func toPostResponse(v guild.PostView) api.PostResponse {
	resp := api.PostResponse{
		ID:         v.ID,
		GuildID:    v.GuildID,
		AuthorID:   v.AuthorID,
		AuthorName: v.AuthorName,
		Content:    v.Content,
		PostType:   v.PostType,
		Likes:      v.Likes,
		Comments:   v.Comments,
		IsPinned:   v.IsPinned,
		IsLiked:    v.IsLiked,
		CreatedAt:  formatTime(v.CreatedAt),
	}
	if v.Card != nil {
		resp.Card = &api.CardRequest{Game: v.Card.Game, Price: v.Card.Price}
	}
	return resp
}

func toNewPost(req api.CreatePostRequest) domain.NewPost {
	input := domain.NewPost{
		Content:    req.Content,
		PostType:   req.PostType,
		AuthorName: req.AuthorName,
	}
	if req.Card != nil {
		input.Card = &domain.Card{Game: req.Card.Game, Price: req.Card.Price}
	}
	return input
}

func toReconcileResponse(report *guild.ReconcileReport) api.ReconcileResponse {
	resp := api.ReconcileResponse{
		GuildsChecked: report.GuildsChecked,
		PostsChecked:  report.PostsChecked,
		Drifts:        make([]api.CounterDrift, 0, len(report.Drifts)),
	}
	for _, d := range report.Drifts {
		resp.Drifts = append(resp.Drifts, api.CounterDrift{
			Entity:   d.Entity,
			ID:       d.ID,
			Counter:  d.Counter,
			Stored:   d.Stored,
			Actual:   d.Actual,
			Repaired: d.Repaired,
		})
	}
	return resp
}
