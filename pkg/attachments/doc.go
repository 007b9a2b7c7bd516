// Package attachments mirrors a local directory against the
// attachments of a work item. Push uploads local changes, Pull
// downloads server changes, and Watch keeps pushing in the background
// as files change on disk.
//
// A yaml index under the mirror's system directory records what has
// already been exchanged, so repeated syncs only move real changes.
package attachments
