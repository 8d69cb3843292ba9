package ledger

import "regexp"

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9:_]+$`)

func validateReference(field, reference string) error {
	if reference == "" {
		return validationError(field, "must not be empty")
	}
	if !referencePattern.MatchString(reference) {
		return validationError(field, "may only contain letters, digits, ':' and '_'")
	}
	return nil
}

// validateFreeText accepts any non-empty string without ASCII control characters.
func validateFreeText(field, value string) error {
	if value == "" {
		return validationError(field, "must not be empty")
	}
	for i := 0; i < len(value); i++ {
		if c := value[i]; c < 0x20 || c == 0x7f {
			return validationError(field, "must not contain control characters")
		}
	}
	return nil
}
