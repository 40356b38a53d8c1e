// Package mcp defines the wire-level types exchanged with clients: content
// blocks, tool/prompt/resource descriptors, capability advertisements, and the
// request/result shapes for every protocol method the server handles.
package mcp
