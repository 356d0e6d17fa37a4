package service

import "time"

// Meta names recognized on exercise service pages.
const (
	metaStatus      = "status"
	metaWait        = "wait"
	metaPoints      = "points"
	metaMaxPointsHy = "max-points"
	metaMaxPointsUn = "max_points"
	metaTitle       = "DC.Title"
	metaDescription = "DC.Description"

	metaStatusAccepted = "accepted"
	metaStatusRejected = "rejected"
)

// AliasScript is an inline script lifted out of the page together with the
// local name its jQuery reference should be bound to.
type AliasScript struct {
	Code  string
	Alias string
}

// ExercisePage is the transient result of one exercise service page fetch:
// the extracted content fragment, the protocol flags derived from the page
// metadata, and the assets to inject into the host page.
type ExercisePage struct {
	// Content is the serialized content fragment, empty when the page carried
	// no recognizable content element.
	Content string

	IsLoaded   bool
	IsAccepted bool
	IsGraded   bool
	IsRejected bool
	IsWait     bool

	Points    int
	MaxPoints int

	Title       string
	Description string
	Meta        map[string]string

	InjectedCSSURLs []string
	InjectedJSURLs  []string
	InjectedJSCode  []string
	AliasScripts    []AliasScript

	// LastModified is the raw Last-Modified response header, passed through.
	LastModified string
	// Expires is the parsed Expires response header, zero when absent or
	// unparseable.
	Expires time.Time
}
