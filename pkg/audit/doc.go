// Package audit keeps the cleaning history: one record per sanitize call,
// capturing what came in, what went out, and why every removed parameter
// was removed.
//
// Records flow through an asynchronous Recorder so the cleaning path never
// blocks on storage. The Storage interface in this package is implemented by
// the backends under audit/storage; audit/retention prunes old records on a
// schedule.
package audit
