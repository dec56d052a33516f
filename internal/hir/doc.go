// Package hir holds the resolved program handed over by the front end:
// features (routines, fields, intrinsics, abstracts, choices, native
// features and type parameters), their types and their code.
//
// Everything here is generic: types may mention type parameters and
// `F.this` markers. The mono package turns a Program into concrete clazzes.
//
// Expressions form a closed union. Expr can only be implemented inside this
// package; consumers switch over it with a Visitor, so adding a variant
// breaks every visitor at compile time instead of falling into a default
// branch at run time.
package hir
