// Package netsim provides an in-memory lossy network for deterministic
// tests and demos of the streaming pipelines.
//
// A Network sits between sender endpoints and receiver endpoints in place
// of UDP sockets. Policies decide, packet by packet, whether it is
// delivered, dropped or delayed behind its successor:
//
//	network := netsim.New(netsim.DropEvery(7, 3), netsim.ReorderEvery(5, 2))
//	network.Attach(sourceAddr, receiverEndpoint.Writer())
//
//	senderEndpoint.SetDestinationAddress(sourceAddr)
//	senderEndpoint.SetDestinationWriter(network.Writer(senderAddr))
//
// Delivery is synchronous, so a test controls exactly which packets the
// receiver has seen before each read. Every packet is recorded in a
// delivery log that tests can inspect.
//
// # Thread Safety
//
// All methods on Network are safe for concurrent use.
package netsim
