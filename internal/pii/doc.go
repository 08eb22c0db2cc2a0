// Package pii detects personally identifiable information in text and
// replaces it with reversible placeholder tokens.
//
// Redaction runs an ordered list of labelled rules over the text. Each
// match becomes a token of the form <<LABEL_N>>, where N counts matches of
// that label within one call:
//
//	redacted, mapping := pii.Redact("Contact alice@example.com for info.")
//	// redacted: "Contact <<EMAIL_1>> for info."
//	// mapping:  {"<<EMAIL_1>>": "alice@example.com"}
//
// The redacted text can be sent to a model. Placeholders the model echoes
// back are turned into the original values with Restore, or with a
// RestoringWriter when the reply is streamed:
//
//	answer := pii.Restore(reply, mapping)
//
// Detection is pattern based only. Rules are applied in a fixed order and
// a span taken by an earlier rule is never matched again by a later one.
//
// Configuration via ~/.guardrails.yaml:
//
//	pii:
//	  enabled: true
//	  labels:
//	    - SSN
//	    - EMAIL
//	    - PHONE
package pii
