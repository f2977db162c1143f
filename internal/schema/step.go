package schema

// Step represents one business-logic step of an action.
//
// This is a sealed interface - only types in this package implement it.
// Branch bodies (Conditional, Foreach) own their nested steps as plain
// slices of the same type; the tree is produced top-down and never mutated,
// so cycles are structurally impossible.
//
// Step types:
//   - Validate: abort with a caller-supplied error code if a predicate is false
//   - Update: mutate an existing row (audit-stamped, tenant-scoped)
//   - Insert: create a row (Trinity identity auto-populated)
//   - Delete: soft-delete an existing row (never physical deletion)
//   - Conditional: branch on a predicate
//   - Foreach: iterate a sequence inside the same transaction
//   - Call: invoke another compiled action or a declared helper
//   - Notify: record an asynchronous notification intent
type Step interface {
	stepNode() // Marker method - seals interface to this package
}

// Assignment sets one entity field to the value of an expression.
type Assignment struct {
	Field string
	Value Expr
}

// Validate aborts the action when Predicate is false at runtime. It never
// mutates state. ErrorCode is surfaced verbatim as the envelope error_code;
// Message is an optional human-readable elaboration.
type Validate struct {
	Predicate Expr
	ErrorCode string
	Message   string
}

func (Validate) stepNode() {}

// Update mutates an existing row of Target (empty = the action's primary
// entity). TargetID is the external identifier expression; when nil the
// action's implicit p_<entity>_id parameter is used. Audit columns are
// appended by the compiler, never written here.
type Update struct {
	Target   string
	TargetID Expr
	Set      []Assignment
}

func (Update) stepNode() {}

// Insert creates a row of Target. The Trinity triple is auto-populated:
// the internal key comes from the storage layer, ID overrides the generated
// external identifier, Identifier overrides the derived human identifier
// base.
type Insert struct {
	Target     string
	Set        []Assignment
	ID         Expr
	Identifier Expr
}

func (Insert) stepNode() {}

// Delete soft-deletes an existing row. Compiled as an Update setting the
// soft-delete marker; physical deletion is never emitted.
type Delete struct {
	Target   string
	TargetID Expr
}

func (Delete) stepNode() {}

// Conditional branches on Predicate. Both branches share the parent scope;
// bindings declared inside a branch do not leak outside it.
type Conditional struct {
	Predicate Expr
	Then      []Step
	Else      []Step
}

func (Conditional) stepNode() {}

// Foreach iterates Source (which must yield a sequence), binding each
// element to LoopVar for the body. The loop runs entirely inside the same
// transaction; any failure inside the body aborts the whole action.
type Foreach struct {
	Source  Expr
	LoopVar string
	Body    []Step
}

func (Foreach) stepNode() {}

// Call invokes a named procedure: either another compiled action of the
// same bundle or a declared helper. The return value is bound to
// ResultBinding when non-empty.
type Call struct {
	Procedure     string
	Args          []Expr
	ResultBinding string
}

func (Call) stepNode() {}

// Notify records the intent to emit Event with Payload. The intent is a
// structured side-effect entry surfaced through the result envelope for
// asynchronous dispatch; no synchronous network call is compiled.
type Notify struct {
	Event   string
	Payload Expr
}

func (Notify) stepNode() {}
