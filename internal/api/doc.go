// Package api provides the trading-platform REST client and push-channel
// wire types.
//
// REST endpoints (JSON POST, bearer token after login):
//   - /Auth/loginKey: credentials → JWT token
//   - /Contract/search: symbol text → candidate contracts
//   - /History/retrieveBars: contract + range → minute bars
//
// Push channel events: GatewayQuote (consumed), GatewayTrade (decoded only).
package api
