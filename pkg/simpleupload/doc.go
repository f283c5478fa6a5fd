// Package simpleupload authorizes direct uploads to a remote storage worker
// and performs privileged file operations against it on behalf of backend
// services.
//
// It exposes a single Service interface. Client uploads are authorized with
// short-lived signed URLs built by PresignUpload; no file bytes pass through
// the service. Backend operations (delete, copy, confirm, orphan cleanup and
// so on) go through the worker package, where every failure is mapped to a
// safe default value instead of an error.
//
// # Key Derivation
//
// Presigned uploads use the caller's file name verbatim as the key; the
// worker returns the authoritative key in its upload response. Server-side
// creates and copies derive keys of the form
// {public|private}/{folder}/{uuid}-{slug} through the objectkey package.
package simpleupload
