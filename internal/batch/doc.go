// Package batch runs speaker detection over many files in parallel.
//
// The Coordinator bounds concurrency with an errgroup limit. Each task opens
// its own embedder handle, loads its reference, decodes into a private scratch
// directory and runs under its own timeout, so one bad input only ever yields
// one error result.
package batch
