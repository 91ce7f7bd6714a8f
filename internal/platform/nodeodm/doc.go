// Package nodeodm implements the REST client for the remote photogrammetry
// compute node (NodeODM API).
//
// Transport and protocol failures are reported as *NodeError so callers can
// distinguish them from business outcomes: a job reporting FAILED is a
// terminal status, not an error from this package.
package nodeodm
