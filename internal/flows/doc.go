// Package flows contains pure-function orchestrators for the Engine's
// token operations.
//
// Each flow function (RunIssue, RunRefresh, RunVerify) accepts a typed
// dependency struct and returns a result carrying either a success
// payload or a classified failure kind. The root package maps failure
// kinds to its public sentinels; flows never decide what callers see.
//
// Flow functions coordinate the session store, the token codec, the
// device hasher, and caches through dependency fields. They hold no
// state, do no I/O of their own, and never import the root package.
package flows
