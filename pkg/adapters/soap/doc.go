// Package soap implements the core accessor interfaces on top of the
// SOAP web services of a Polarion server.
//
// A single Client owns the HTTP connection, the service catalog and the
// login session. Per-service accessors (WorkItems, Plans, Projects,
// TestRuns) borrow the client and translate between core field maps and
// the wire envelopes.
package soap
