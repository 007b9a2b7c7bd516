// Package polarion is the composition root for the Polarion ALM client.
//
// It connects the entity domain layer (pkg/core) with the transport
// adapters (pkg/adapters) using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// Polarion's web services speak in flat records; this library lets you
// work with live entities instead. Every entity keeps the last
// server-confirmed snapshot of its fields, edits stay local until Save,
// a save sends only the fields that changed, and a save with nothing
// changed costs no remote call at all.
//
// Features:
//
//   - **Entity sync model**: snapshot on load, dirty-field diff on save,
//     full reload afterwards so server-side bookkeeping shows up locally.
//   - **Cross-entity consistency**: linking, planning and assignment
//     operations reload every loaded entity they touched.
//   - **SOAP transport**: service discovery, session login and a single
//     transparent re-login when the session expires mid-call.
//   - **Rich text**: plain-text rendering of server HTML including
//     tables, item references and formulas (pkg/richtext).
//   - **Extensible**: any backend implementing the core service ports
//     can stand in for the SOAP transport (see pkg/adapters/memory).
//
// Usage:
//
//	client, err := polarion.NewClient(ctx, "https://alm.example.com/polarion", "user", "secret")
//	if err != nil {
//		// handle
//	}
//	defer client.Close(ctx)
//
//	project, err := client.Project(ctx, "MYPROJ")
//	item, err := project.WorkItem(ctx, "MYPROJ-123")
//	item.Set("title", "Sharper title")
//	err = item.Save(ctx)
package polarion
