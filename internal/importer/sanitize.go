package importer

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	classRe    = regexp.MustCompile(`^[A-Za-z0-9_ -]*$`)
	objectIDRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// Sanitizer strips scripts, event handlers and unsafe URLs from converted
// bodies while keeping the asset:// and object:// references the importer writes.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds a sanitizer on top of the user-generated-content policy.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowURLSchemes("asset", "object")
	policy.AllowElements("span")
	policy.AllowAttrs("class").Matching(classRe).OnElements("a", "span", "code", "pre")
	policy.AllowAttrs("data-object-id").Matching(objectIDRe).OnElements("a")
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Sanitizer{policy: policy}
}

// Sanitize returns the cleaned HTML.
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
