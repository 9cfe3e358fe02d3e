package token

// Target is what a content token authorizes: an explicit manifest list, a
// set of content-matching regexes, or nothing at all for reporting-only
// tokens. Exactly one case holds; the choice is made once at construction.
type Target interface {
	target()
}

type ManifestTarget []string

type RegexTarget []string

type ReportingOnly struct{}

func (ManifestTarget) target() {}
func (RegexTarget) target()    {}
func (ReportingOnly) target()  {}

type ClaimError struct {
	Reason string
}

func (e *ClaimError) Error() string {
	return "invalid claims: " + e.Reason
}

// ResolveTarget classifies the manifest/regex inputs, rejecting the
// combination where both are supplied.
func ResolveTarget(manifests, regexes []string) (Target, error) {
	switch {
	case len(manifests) > 0 && len(regexes) > 0:
		return nil, &ClaimError{Reason: "manifests and regexes are mutually exclusive"}
	case len(regexes) > 0:
		return RegexTarget(regexes), nil
	case len(manifests) > 0:
		return ManifestTarget(manifests), nil
	default:
		return ReportingOnly{}, nil
	}
}
