package format

import (
	"fmt"
	"strings"
)

// ValidationError describes one problem in a format document.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("format: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the semantic rules a document must satisfy before it can
// be compiled. Structural checks (types, required keys) are done by the JSON
// schema when loading from a file; Validate repeats the ones New relies on so
// that documents built in code are held to the same standard.
func Validate(doc Document) error {
	var errs ValidationErrors

	emits := 0
	names := make(map[string]int)

	for i, st := range doc.Syntax {
		field := fmt.Sprintf("syntax[%d]", i)

		op, ok := ParseOp(st.Kind)
		if !ok {
			errs = append(errs, ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown instruction %q", st.Kind)})
			continue
		}

		switch op {
		case OpSkip:
			if st.Count < 0 {
				errs = append(errs, ValidationError{Field: field + ".count", Message: "must not be negative"})
			}
		case OpSkipUntilChar:
			if !isSingleChar(st.Char) {
				errs = append(errs, ValidationError{Field: field + ".char", Message: fmt.Sprintf("must be exactly one character, got %q", st.Char)})
			}
		case OpSkipUntilString:
			if st.String == "" {
				errs = append(errs, ValidationError{Field: field + ".string", Message: "must not be empty"})
			}
		case OpEmitEnumeration:
			if len(st.Variants) == 0 {
				errs = append(errs, ValidationError{Field: field + ".variants", Message: "at least one variant is required"})
			}
			seen := make(map[string]bool, len(st.Variants))
			for _, v := range st.Variants {
				if seen[v] {
					errs = append(errs, ValidationError{Field: field + ".variants", Message: fmt.Sprintf("duplicate variant %q", v)})
				}
				seen[v] = true
			}
		}

		if !op.IsEmit() {
			continue
		}
		emits++

		name := strings.TrimSpace(st.Name)
		if name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "emit instructions need a column name"})
			continue
		}
		if prev, dup := names[strings.ToLower(name)]; dup {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("column %q already defined by syntax[%d]", name, prev)})
		}
		names[strings.ToLower(name)] = i
	}

	if emits == 0 {
		errs = append(errs, ValidationError{Field: "syntax", Message: "format emits no columns"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
