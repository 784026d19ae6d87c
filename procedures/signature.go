package procedures

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// argument is an input argument of a database function.
type argument struct {
	name    string
	typ     string
	hasDflt bool
}

// signature describes how a function is called and what it returns.
type signature struct {
	schema    string
	function  string
	args      []argument
	returnSet bool
	void      bool
}

const signatureQuery = `
	SELECT
		p.proretset,
		p.prorettype = 'pg_catalog.void'::pg_catalog.regtype,
		p.pronargdefaults,
		coalesce(p.proargnames, '{}'::text[]),
		coalesce(p.proargmodes::text[], '{}'::text[]),
		ARRAY(
			SELECT pg_catalog.format_type(u.t, NULL)
			FROM unnest(coalesce(p.proallargtypes, p.proargtypes::oid[])) WITH ORDINALITY AS u(t, i)
			ORDER BY u.i
		)
	FROM pg_catalog.pg_proc p
	JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
	WHERE n.nspname = $1 AND p.proname = $2
`

// lookup loads the signatures of all overloads of schema.function.
func lookup(ctx context.Context, q pgx.Tx, schema, function string) ([]signature, error) {
	rows, err := q.Query(ctx, signatureQuery, schema, function)
	if err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", schema, function, err)
	}
	defer rows.Close()

	var sigs []signature
	for rows.Next() {
		var (
			returnSet, void bool
			defaults        int
			names, modes    []string
			types           []string
		)
		if err := rows.Scan(&returnSet, &void, &defaults, &names, &modes, &types); err != nil {
			return nil, fmt.Errorf("lookup %s.%s: scan: %w", schema, function, err)
		}
		sigs = append(sigs, newSignature(schema, function, returnSet, void, defaults, names, modes, types))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", schema, function, err)
	}

	return sigs, nil
}

// newSignature keeps the input arguments (modes i, b and v). Trailing
// defaults apply to the last input arguments.
func newSignature(schema, function string, returnSet, void bool, defaults int, names, modes, types []string) signature {
	sig := signature{schema: schema, function: function, returnSet: returnSet, void: void}
	for i, typ := range types {
		mode := "i"
		if i < len(modes) {
			mode = modes[i]
		}
		if mode != "i" && mode != "b" && mode != "v" {
			continue
		}
		var name string
		if i < len(names) {
			name = names[i]
		}
		sig.args = append(sig.args, argument{name: name, typ: typ})
	}
	for i := len(sig.args) - defaults; i < len(sig.args); i++ {
		if i >= 0 {
			sig.args[i].hasDflt = true
		}
	}
	return sig
}

// accepts reports whether keys name every required argument and nothing
// the function does not take.
func (s signature) accepts(keys []string) bool {
	for _, arg := range s.args {
		if arg.name == "" {
			return false
		}
		if !arg.hasDflt && !slices.Contains(keys, arg.name) {
			return false
		}
	}
	for _, key := range keys {
		if !slices.ContainsFunc(s.args, func(a argument) bool { return a.name == key }) {
			return false
		}
	}
	return true
}

// choose picks the single overload accepting keys.
func choose(sigs []signature, schema, function string, keys []string) (signature, error) {
	var matches []signature
	for _, sig := range sigs {
		if sig.accepts(keys) {
			matches = append(matches, sig)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		sorted := slices.Clone(keys)
		slices.Sort(sorted)
		return signature{}, &Error{
			Code:    "PGRST202",
			Message: fmt.Sprintf("Could not find the function %s.%s(%s) in the schema cache", schema, function, strings.Join(sorted, ", ")),
		}
	default:
		return signature{}, &Error{
			Code:    "PGRST203",
			Message: fmt.Sprintf("Could not choose the best candidate function between overloads of %s.%s", schema, function),
		}
	}
}

// query builds the statement calling the function with the given keys. The
// params are passed as the single jsonb parameter $1 and unpacked with
// jsonb_to_record, so each argument gets its declared type.
func (s signature) query(keys []string) string {
	fn := pgx.Identifier{s.schema, s.function}.Sanitize()

	var (
		named   []string
		columns []string
	)
	for _, arg := range s.args {
		if !slices.Contains(keys, arg.name) {
			continue
		}
		col := pgx.Identifier{arg.name}.Sanitize()
		named = append(named, fmt.Sprintf("%s => _.%s", col, col))
		columns = append(columns, fmt.Sprintf("%s %s", col, arg.typ))
	}

	call := fmt.Sprintf("%s(%s)", fn, strings.Join(named, ", "))
	from := "(SELECT $1::jsonb) AS _"
	if len(columns) > 0 {
		from = fmt.Sprintf("jsonb_to_record($1::jsonb) AS _(%s)", strings.Join(columns, ", "))
	}

	switch {
	case s.returnSet:
		return fmt.Sprintf("SELECT coalesce(jsonb_agg(to_jsonb(r)), '[]'::jsonb) FROM %s CROSS JOIN LATERAL %s AS r", from, call)
	case s.void:
		return fmt.Sprintf("SELECT %s FROM %s", call, from)
	default:
		return fmt.Sprintf("SELECT to_jsonb(%s) FROM %s", call, from)
	}
}
