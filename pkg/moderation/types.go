package moderation

import "time"

// UserBan is one ban row. SphereID and SphereName are nil for site-wide
// bans, UntilTimestamp is nil for permanent ones, and DeleteTimestamp is
// set when the ban is lifted or swept after lapsing.
type UserBan struct {
	BanID           int64      `json:"ban_id"`
	UserID          int64      `json:"user_id"`
	Username        string     `json:"username"`
	SphereID        *int64     `json:"sphere_id,omitempty"`
	SphereName      *string    `json:"sphere_name,omitempty"`
	PostID          int64      `json:"post_id"`
	CommentID       *int64     `json:"comment_id,omitempty"`
	InfringedRuleID int64      `json:"infringed_rule_id"`
	ModeratorID     int64      `json:"moderator_id"`
	UntilTimestamp  *time.Time `json:"until_timestamp,omitempty"`
	CreateTimestamp time.Time  `json:"create_timestamp"`
	DeleteTimestamp *time.Time `json:"delete_timestamp,omitempty"`
}

// Global reports whether the ban applies site-wide.
func (b *UserBan) Global() bool {
	return b.SphereName == nil
}

// Permanent reports whether the ban has no expiry.
func (b *UserBan) Permanent() bool {
	return b.UntilTimestamp == nil
}

// Active reports whether the ban is in force at the given instant.
func (b *UserBan) Active(now time.Time) bool {
	if b.DeleteTimestamp != nil {
		return false
	}
	return b.UntilTimestamp == nil || b.UntilTimestamp.After(now)
}
