package validate

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

// checkJSON parses text and validates it against schema. The output is
// checked before the schema, so an unparseable answer is reported even
// when the schema is broken too.
func checkJSON(text, schema string) []Issue {
	if err := parseWhole(text); err != nil {
		return []Issue{schemaIssue("Output is not valid JSON: %v", err)}
	}
	if err := parseWhole(schema); err != nil {
		return []Issue{schemaIssue("Invalid schema JSON: %v", err)}
	}

	doc := gojsonschema.NewStringLoader(text)
	schemaLoader := gojsonschema.NewStringLoader(schema)
	compiled, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return []Issue{schemaIssue("Invalid schema: %v", err)}
	}

	result, err := compiled.Validate(doc)
	if err != nil {
		return []Issue{schemaIssue("Output is not valid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		issues = append(issues, schemaIssue("%s", describe(re)))
	}
	return issues
}

// parseWhole requires s to be exactly one JSON value. The gojsonschema
// loaders stop after the first value and would accept trailing text.
func parseWhole(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}

// describe turns a schema violation into a message. Top-level type and
// required-key failures get fixed wording; anything deeper falls back to
// the library's description.
func describe(re gojsonschema.ResultError) string {
	switch re.Type() {
	case "invalid_type":
		if re.Field() == rootField {
			switch expected := fmt.Sprint(re.Details()["expected"]); expected {
			case "object":
				return "Expected a JSON object at top level"
			case "array":
				return "Expected a JSON array at top level"
			default:
				return fmt.Sprintf("Expected JSON of type %s at top level", expected)
			}
		}
	case "required":
		key := fmt.Sprint(re.Details()["property"])
		if re.Field() != rootField {
			key = re.Field() + "." + key
		}
		return fmt.Sprintf("Required key missing: '%s'", key)
	}
	return fmt.Sprintf("%s: %s", re.Field(), re.Description())
}

func schemaIssue(format string, args ...any) Issue {
	return Issue{
		Rule:     RuleJSONSchema,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}
}
