// Package storageworker is a reference implementation of the storage worker
// HTTP contract that the worker client talks to. It is used for local
// development and end-to-end tests.
//
// Clients upload with a client token in the query string; every privileged
// endpoint requires a backend token whose action claim names the endpoint.
// Uploaded files stay unconfirmed until a backend confirms them; unconfirmed
// files older than maxAge hours are orphans.
package storageworker
