// Package foreign owns the object-owning side of the bridge.
//
// Ownership boundary:
// - object allocation and handle assignment
// - per-object reference counts and release notifications
// - reflection bindings from class field lists to Go struct fields
// - foreign functions that hand objects back by handle
//
// Handles are assigned from a monotonically increasing counter and a numeric slot is
// never reused within one Heap. Access to each object is serialized by the object's
// own lock; the heap imposes nothing across objects.
package foreign
