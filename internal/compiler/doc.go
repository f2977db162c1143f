// Package compiler translates entity/action definitions into atomic
// PL/pgSQL procedures.
//
// Each action compiles to one function returning the uniform
// app.mutation_result envelope. The whole body executes as one sequential
// unit of work inside the caller's transaction: any failing step raises an
// exception carrying a reserved SQLSTATE, the trailing exception block maps
// it to the closed error taxonomy, and the block boundary rolls back every
// mutation the action performed. There are no partial-completion states.
//
// Compilation is a pure function of (definitions, options): recompiling the
// same action always yields byte-identical output.
package compiler
