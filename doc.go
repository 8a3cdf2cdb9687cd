// Package binstream implements a binary object-graph serializer with
// reference preservation, surrogate substitution and schema-evolution
// ("version tolerance") support.
//
// A caller hands a root value and an output sink to Serialize; the
// package writes a self-describing stream that, when replayed through
// Deserialize against a byte source, reconstructs the value and the
// full graph of objects reachable from it, including shared and cyclic
// references. OpenWriter/OpenReader attach a long-lived writer or
// reader to a stream for many consecutive operations that share the
// identity and type tables built by previous operations.
package binstream
