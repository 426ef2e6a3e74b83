// Package wire owns bridge call transport helpers.
//
// Ownership boundary:
// - call / reply / release notification frame codecs
// - abi value <-> tlv field mapping
// - dial retry backoff and transport defaults
package wire
