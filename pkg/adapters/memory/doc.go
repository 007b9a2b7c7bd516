// Package memory implements the transport service contracts against an
// in-process store. It exists for tests and local experiments: entities
// and the sync layer run against it exactly as they run against the
// soap adapter, and every service call is counted so tests can assert
// how many remote operations a workflow would have cost.
//
// The store materializes relationship state (links, comments, plan
// items, test records, attachments) into the same field shapes the
// soap decoder produces, so code exercised here sees the wire shapes
// it will see in production.
package memory
