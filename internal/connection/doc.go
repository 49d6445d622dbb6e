// Package connection manages the persistent push channel to the
// platform's market hub.
//
// The hub speaks SignalR JSON over a WebSocket: 0x1e-delimited JSON
// records, an initial protocol handshake, type-1 invocations
// (GatewayQuote, GatewayTrade inbound; SubscribeContractQuotes
// outbound), and type-6 pings. The manager owns the connection
// lifecycle: connect, subscribe with pacing, reconnect on a fixed
// delay schedule, and flush-before-teardown on stop.
package connection
