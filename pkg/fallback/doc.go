// Package fallback escalates parameter keys no rule covered to an external
// inference endpoint that classifies them as tracking or functional.
//
// The request carries the host and the unresolved key names, nothing else;
// parameter values, the full URL, and owner identity never leave the
// process. The client fails open: on timeout, transport failure, or a
// malformed response it reports zero tracking keys and the URL keeps its
// parameters. Classification is advisory and never surfaces to end users.
package fallback
