// Package vm implements the Loom virtual machine.
//
// This package contains:
//   - Tagged value representation
//   - Class model with multiple inheritance and merged method tables
//   - Work-queue AST interpreter (stackless; no host recursion)
//   - Closures with shared mutable cells and non-local returns
//   - Cooperative green-thread scheduler and sync primitives
//   - Native method implementations for the core classes
package vm
