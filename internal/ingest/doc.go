// Package ingest loads a log file into the row store.
//
// A Producer reads and parses lines and sends batches of rows over a bounded
// channel; a Consumer inserts them inside one transaction and commits once
// the channel is closed. Load runs both under an errgroup and hands the
// committed store to the caller.
//
// Lines the parser rejects are treated as continuations of the previous row
// (stack traces, wrapped messages) when its last field is text; otherwise
// they are dropped and counted.
package ingest
