// Package schema defines the entity/action definition AST consumed by the
// compiler.
//
// Definitions arrive either as Go values (constructed by an embedding
// program) or as a structural YAML bundle decoded by LoadBundle. The AST is
// built top-down and never mutated after construction, so step and
// expression trees are acyclic by construction.
//
// Both Step and Expr are sealed interfaces: the marker method pattern
// prevents external implementations and enables exhaustive type switches in
// the compiler.
package schema
