package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRecognizedProperty(t *testing.T) {
	recognized := []string{
		"tagNumber",
		"description",
		"discipline",
		"requiredByDate",
		"manufacturer",
		"unitPrice",
		"version",
		"projectId",
	}
	for _, name := range recognized {
		assert.True(t, IsRecognizedProperty(name), "expected %q to be recognized", name)
	}

	// Property names are exact wire names, not Go fields or snake_case.
	unrecognized := []string{"", "favoriteColor", "TagNumber", "tag_number", "Manufacturer"}
	for _, name := range unrecognized {
		assert.False(t, IsRecognizedProperty(name), "expected %q to be rejected", name)
	}
}
