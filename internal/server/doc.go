// Package server implements the connection gateway for the chat relay.
//
// It owns the wire boundary: HTTP routes, WebSocket upgrades with origin
// checks, the hub mapping connection ids to live sockets, and the per-client
// read/write pumps. All protocol decisions live in the chat package; this
// package only frames, delivers, and tears down.
package server
