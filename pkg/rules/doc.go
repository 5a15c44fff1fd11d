// Package rules defines the compiled rule model for URL sanitization.
//
// A RuleSet is the immutable, versioned unit the rest of the system works
// with. It is produced by compiling a raw ClearURLs-format JSON document
// (see Compile) and is never mutated after compilation: refreshing rules
// always builds a complete new RuleSet and swaps it in wholesale.
//
// Each provider in the document contributes a Provider entry with
// pre-compiled patterns:
//
//   - URLPattern: matches URLs the provider's rules apply to
//   - Rules / ReferralMarketing: parameter-removal rules matched against
//     query and fragment keys
//   - Exceptions: URLs the provider (and the global stage) must leave alone
//   - Redirections: patterns whose first capture group is the embedded
//     destination URL of a redirector link
//   - RawRules: substring-removal patterns applied to the whole URL string
//
// Compilation is all-or-nothing. A single invalid pattern rejects the whole
// candidate document with a CompileError so that a partially compiled rule
// set can never become active.
package rules
