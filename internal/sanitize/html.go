package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// textEntities undoes the policy's escaping of characters that are harmless
// in stored text. Angle brackets stay encoded so no tag can come back.
var textEntities = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)

// Text strips markup and surrounding whitespace.
func Text(input string) string {
	return strings.TrimSpace(textEntities.Replace(StrictPolicy.Sanitize(input)))
}

// OptionalText sanitizes a nullable field. Blank results become nil.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	cleaned := Text(*input)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
