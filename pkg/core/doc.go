// Package core implements the entity sync model shared by every remote
// entity: load a record, project its attribute groups onto one flat
// field map, track local edits against the last server-confirmed
// snapshot, and push only the changed fields back before reloading.
//
// The package knows nothing about SOAP. Transports plug in through the
// RecordAccessor interface and its companions.
package core
