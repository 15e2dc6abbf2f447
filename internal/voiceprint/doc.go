// Package voiceprint holds the speaker fingerprint model: the Embedder oracle
// contract, cosine scoring, reference fingerprint files, and the speechbrain
// helper process used in production.
//
// Embedder handles are plain values owned by their caller. Nothing here keeps
// a process-wide model; callers open a handle through a Factory, use it, and
// close it.
package voiceprint
