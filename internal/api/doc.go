// Package api exposes the retrieval controls over a small loopback HTTP API.
// Handlers never touch the machine or the toast stack directly; every read
// and write is marshalled onto the UI context with dispatch.Invoke.
package api
