// Package apiclient provides typed HTTP access to a running reelforge
// daemon. The CLI uses it for every command that needs live daemon state;
// callers get the same wire DTOs the API server emits.
package apiclient
