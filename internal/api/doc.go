// Package api hosts the relay's public HTTP surface. Routes:
//   - GET /health answers "Healthy" regardless of upstream state.
//   - GET /http/<host>/<path>?<query> and GET /https/... answer the target
//     page's title as text/plain.
//   - Anything else, including other methods, is a 400 with an empty body.
//
// Every relay request runs under a watchdog; when it fires first the client
// gets 504 and the pipeline context is cancelled. Only one outcome per request
// is ever written.
package api
