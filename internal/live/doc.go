// Package live serves a search view over a websocket.
//
// Each connection owns a SearchView host. The client drives it with JSON
// frames:
//
//	{"type":"attr","name":"query","value":"ada"}
//	{"type":"remove","name":"query"}
//	{"type":"limit","limit":5}
//	{"type":"reload"}
//
// With WithAttributeDebounce, attr and remove frames for one attribute are
// debounced so that typing sends a single search.
//
// and receives a snapshot after every host update:
//
//	{"type":"snapshot","status":"resolved","query":"ada","limit":5,
//	 "attributes":{"query":"ada"},"value":[...]}
//
// Closing the socket disconnects the host, which cancels any search that is
// still in flight.
package live
