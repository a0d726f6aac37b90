// Package content stores posts and comments and gates their creation on
// the author's ban status.
//
// Creation checks the author's cached permission snapshot rather than
// the ban table: a global ban blocks publishing everywhere, a sphere ban
// blocks publishing in that sphere, and a lapsed temporary ban blocks
// nothing. Moderation state lives on the content rows themselves and is
// written by the moderation service.
package content
