package draft

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Parse turns raw draft text into a validated tree. Failures are reported
// as *ContentError: either the YAML does not parse, or the parsed tree
// does not satisfy the embedded CUE schema (missing steps, malformed
// router_politics, and so on).
func Parse(text string) (map[string]any, error) {
	var tree map[string]any
	if err := yaml.Unmarshal([]byte(text), &tree); err != nil {
		return nil, &ContentError{Reason: "text does not parse as YAML", Err: err}
	}
	if tree == nil {
		return nil, &ContentError{Reason: "draft is empty"}
	}
	if err := Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Validate checks a parsed draft tree against the structural schema.
// Uses the CUE SDK's Go API directly (not a CLI subprocess): the tree is
// encoded into a cue.Value and unified with the #Draft definition.
func Validate(tree map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile draft schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Draft"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Draft: %w", err)
	}

	data := ctx.Encode(tree)
	if err := data.Err(); err != nil {
		return &ContentError{Reason: "tree is not encodable", Err: err}
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return &ContentError{
			Reason: fmt.Sprintf("schema violation: %s", cueerrors.Details(err, nil)),
			Err:    err,
		}
	}
	return nil
}

// RootSteps returns the configured root step order a fresh session's
// stack is seeded from.
func RootSteps(tree map[string]any) []string {
	politics, _ := tree["router_politics"].(map[string]any)
	return StringSlice(politics["steps_stack"])
}

// Steps returns the draft's step graph keyed by step key.
func Steps(tree map[string]any) map[string]any {
	steps, _ := tree["steps"].(map[string]any)
	return steps
}

// Results returns the draft's results tree keyed by result id.
func Results(tree map[string]any) map[string]any {
	results, _ := tree["results"].(map[string]any)
	return results
}
