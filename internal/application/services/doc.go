// Package services is the business layer of the CRM.
//
// Each entity service validates input, scopes every call to the caller's
// user id, writes through the persistence repositories and publishes a
// record change on the EventBus after a successful write. Side effects such
// as search indexing, realtime fan-out and dashboard cache invalidation are
// bus subscribers and never fail the write that triggered them.
package services
