package compiler

import "fmt"

// successEpilogue populates and returns the envelope once every step
// completed. object_data is the final row state re-read after all
// mutations (minus the internal key); actions that never touch their
// primary entity return NULL object_data.
func (c *ActionContext) successEpilogue() []string {
	var lines []string
	if c.primaryPK != "" {
		lines = append(lines, fmt.Sprintf(
			"SELECT to_jsonb(t) - '%s' INTO v_object FROM %s t WHERE %s = %s;",
			pkColumn(c.entity), c.opts.tableName(c.entity), pkColumn(c.entity), c.primaryPK))
	}
	return append(lines,
		"v_result.success := TRUE;",
		"v_result.error_code := NULL;",
		"v_result.error_message := NULL;",
		"v_result.object_data := v_object;",
		"v_result.impacts := v_impacts;",
		"v_result.extra_metadata := jsonb_build_object('notifications', v_notifications);",
		"RETURN v_result;",
	)
}

// exceptionHandlers renders the single trailing exception block every
// compiled action ends with. Reaching a handler exits the function's
// implicit block, which rolls back everything the body did; the handlers
// only translate the failure into an error envelope.
//
// Reserved states carry the concrete error_code in the exception MESSAGE
// and the human-readable text in DETAIL, so one handler covers the whole
// taxonomy. Constraint failures keep their native classes and the rest
// collapses to internal_error.
func exceptionHandlers(opts Options) []string {
	reserved := fmt.Sprintf("WHEN SQLSTATE '%s' OR SQLSTATE '%s' OR SQLSTATE '%s' OR SQLSTATE '%s' OR SQLSTATE '%s' THEN",
		sqlstateValidationFailed, sqlstatePermissionDenied, sqlstateNotFound,
		sqlstateSequenceLimit, sqlstateCallFailed)

	return []string{
		reserved,
		"    GET STACKED DIAGNOSTICS v_detail = PG_EXCEPTION_DETAIL;",
		fmt.Sprintf("    RETURN %s.mutation_error(SQLERRM, v_detail);", opts.EnvelopeSchema),
		"WHEN unique_violation OR foreign_key_violation OR check_violation OR not_null_violation THEN",
		fmt.Sprintf("    RETURN %s.mutation_error('%s', SQLERRM);", opts.EnvelopeSchema, ErrConstraintViolation),
		"WHEN OTHERS THEN",
		fmt.Sprintf("    RETURN %s.mutation_error('%s', SQLERRM);", opts.EnvelopeSchema, ErrInternal),
	}
}
