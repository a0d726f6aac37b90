package spheres

import "time"

// Sphere is a topic-scoped community. Roles, rules, bans, and posts are
// all scoped to a sphere by name.
type Sphere struct {
	SphereID        int64     `json:"sphere_id"`
	SphereName      string    `json:"sphere_name"`
	Description     string    `json:"description"`
	CreatorID       int64     `json:"creator_id"`
	CreateTimestamp time.Time `json:"create_timestamp"`
}

// Rule is a moderation rule. SphereID is nil for site-wide rules.
type Rule struct {
	RuleID      int64  `json:"rule_id"`
	SphereID    *int64 `json:"sphere_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Global reports whether the rule applies to every sphere.
func (r *Rule) Global() bool {
	return r.SphereID == nil
}
