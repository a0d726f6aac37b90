// Package moderation implements moderation actions and ban enforcement.
//
// # Moderation
//
// Moderating a post or comment overwrites the moderation fields on the
// content row itself. There is no action history; re-moderation replaces
// the previous record. The infringed rule's title is copied onto the row
// at write time.
//
// # Bans
//
// Bans live in an append-only table with soft deletes, mirroring the
// role history. A ban is scoped to one sphere or, with a NULL sphere, to
// the whole site. A NULL until timestamp means permanent. Issuing or
// lifting a ban invalidates the target's permission snapshot; a
// background sweeper retires lapsed temporary bans so snapshots rebuilt
// later stay small.
//
// Enforcement happens at content creation, which checks the author's
// snapshot rather than this table.
package moderation
