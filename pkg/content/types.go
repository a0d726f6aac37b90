package content

import "time"

// ModerationRecord is the moderation state carried on a post or comment.
// Re-moderation overwrites it in place; there is no history. The rule
// title is denormalized at write time so later rule edits do not rewrite
// past actions.
type ModerationRecord struct {
	ModeratorID        *int64  `json:"moderator_id,omitempty"`
	ModeratorName      *string `json:"moderator_name,omitempty"`
	ModeratorMessage   *string `json:"moderator_message,omitempty"`
	InfringedRuleID    *int64  `json:"infringed_rule_id,omitempty"`
	InfringedRuleTitle *string `json:"infringed_rule_title,omitempty"`
}

// Moderated reports whether a moderation action has been recorded.
func (m *ModerationRecord) Moderated() bool {
	return m.ModeratorID != nil
}

// Post is a top-level submission in a sphere.
type Post struct {
	PostID          int64     `json:"post_id"`
	SphereID        int64     `json:"sphere_id"`
	SphereName      string    `json:"sphere_name"`
	AuthorID        int64     `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	CreateTimestamp time.Time `json:"create_timestamp"`

	ModerationRecord
}

// Comment is a reply on a post. It carries the post's sphere name so
// moderation checks need no join.
type Comment struct {
	CommentID       int64     `json:"comment_id"`
	PostID          int64     `json:"post_id"`
	SphereName      string    `json:"sphere_name"`
	AuthorID        int64     `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	Body            string    `json:"body"`
	CreateTimestamp time.Time `json:"create_timestamp"`

	ModerationRecord
}
