// Package ssc implements the SSC (Sennheiser Sound Control) client side
// used to monitor wireless microphone receivers.
//
// SSC is JSON over UDP. The monitor binds one socket (port 45 by default),
// sends each receiver a subscription listing the fields of interest, and
// then receives sparse notifications whenever those fields change. Each
// subscription is re-issued on a fixed period so the receiver keeps
// notifying.
//
// # Components
//
//   - UDPTransport: bound socket, receive loop, single ordered worker
//   - Client: builds the subscription datagram, subscribes and renews
//   - Scheduler: per-receiver renewal tasks driven by an injectable Clock
//   - Decoder: parses datagrams into Update values and attributes them
//     to a receiver by exact source address
//   - Bridge: wires the above and hands each update, mapped to a
//     state.Update, to a Reconciler
//
// # Wire format
//
// Outbound:
//
//	{"osc":{"state":{"subscribe":[
//	  {"mates":{"tx1":{"battery":{"lifetime":null}}}},
//	  {"mates":{"tx2":{"battery":{"lifetime":null}}}},
//	  {"mates":{"tx1":{"mute":null}}},
//	  {"mates":{"tx2":{"mute":null}}},
//	  {"device":{"name":null}},
//	  {"rx1":{"frequency":null,"gain":null,"mute":null,"name":null,"warnings":null,"mates":null}},
//	  {"rx2":{"frequency":null,"gain":null,"mute":null,"name":null,"warnings":null,"mates":null}}
//	],"min":1000,"max":0}}}
//
// Inbound notifications carry any subset of rx1, rx2, mates.tx1,
// mates.tx2 and device.name. A field of the wrong JSON type is dropped
// like a null; only invalid JSON or a non-object payload is malformed.
// Nothing is ever sent in reply.
package ssc
