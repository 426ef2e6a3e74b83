// Package abi owns the boundary call contract shared by the local bridge and the
// foreign runtime.
//
// Ownership boundary:
// - handle and value representation
// - class descriptors (ordered field lists)
// - error kinds and their wire codes
package abi
