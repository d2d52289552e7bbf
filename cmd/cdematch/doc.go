// Package main hosts the cdematch CLI.
//
// The command tree reads two CSV files from disk, extracts their variable
// lists and runs the matching pipeline locally, without the HTTP server or a
// result cache. Output is a rounded table per match type, or JSON with --json.
package main
