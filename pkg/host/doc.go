// Package host serves a location environment over the network and consumes
// it remotely.
//
// A Server wraps any Host, usually a *location.History, and exposes it on a
// chi router:
//
//	GET  /ws        websocket, JSON text frames
//	GET  /location  current location as a location message
//	POST /navigate  {"url": "...", "options": {...}}
//	POST /push      {"url": "...", "state": {...}}
//	GET  /healthz
//	GET  /metrics   when WithGatherer is set
//
// Websocket clients receive a location message on connect and after every
// change. Requests carry an id and are answered with an ack or an error
// message with the same id; the location broadcast caused by a request is
// written before its ack.
//
// A Client is the other end. It implements Host itself, so query stores and
// shallow routes can run against a remote history:
//
//	client, _ := host.NewClient("ws://localhost:7070/ws")
//	page := querysync.NewParam(client, client, "page", querysync.Int(1))
package host
