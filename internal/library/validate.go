package library

import (
	"fmt"
	"regexp"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const maxNameLen = 128

// ValidateName checks that name refers to a file directly inside the
// library directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("recording name cannot be empty")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("recording name too long (max %d chars)", maxNameLen)
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("recording name must start with alphanumeric and contain only letters, numbers, dots, dashes, or underscores")
	}
	return nil
}
