// Package spheres manages spheres (topic-scoped communities) and their
// rules.
//
// # Spheres
//
// A sphere is created by a user who becomes its first leader; leader
// seeding is delegated to the authorization service so the role history
// starts with a single self-granted lead row.
//
// # Rules
//
// Rules are the moderation rubric. A rule either belongs to one sphere
// or, with a NULL sphere id, applies globally. Moderation actions
// reference rules by id and denormalize the title at write time, so
// rule renames do not rewrite past actions.
package spheres
