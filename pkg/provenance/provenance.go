// Package provenance classifies where a book write came from.
package provenance

import "strings"

const (
	// DesktopPrefix starts every source string sent by current desktop clients.
	DesktopPrefix = "BloomDesktop"
	// NewBookSuffix marks the fill step of a two-phase upload.
	NewBookSuffix = "(new book)"

	LegacyDesktop = "legacy-desktop"
	Dashboard     = "dashboard"
	Unknown       = "unknown"

	// Reserved sources used by maintenance jobs. The write pipeline must never
	// mistake these for uploads.
	DefaultBackfill  = "maintenance:default-backfill"
	AnalyticsSync    = "maintenance:analytics-sync"
	Resave           = "maintenance:resave"
	ArtifactLangTags = "maintenance:artifact-lang-tags"
	AssignTag        = "maintenance:assign-tag"
)

const (
	DefaultDesktopUserAgentPrefix = "RestSharp"
	DefaultDashboardRefererMarker = "/dashboard/apps/"
)

// Input is the request metadata seen by the classifier.
type Input struct {
	// Supplied is true when the writer set the update source on this write.
	Supplied     bool
	UpdateSource string
	UserAgent    string
	Referer      string
	IsNew        bool
}

type Classification struct {
	Source string
	// SetUploadTimestamp asks the interceptor to stamp last_uploaded.
	SetUploadTimestamp bool
	IsNew              bool
	// IsNewUploadViaTwoPhaseAPI is set independently of IsNew.
	IsNewUploadViaTwoPhaseAPI bool
}

// IsDesktopUpload reports whether the merge policy applies to this write.
func (c Classification) IsDesktopUpload() bool {
	return IsDesktopSource(c.Source)
}

// TreatAsNew is true for brand new records and for the fill step of a
// two-phase upload.
func (c Classification) TreatAsNew() bool {
	return c.IsNew || c.IsNewUploadViaTwoPhaseAPI
}

type Classifier struct {
	desktopUserAgentPrefix string
	dashboardRefererMarker string
}

// NewClassifier returns a classifier. Empty arguments fall back to the
// defaults.
func NewClassifier(desktopUserAgentPrefix, dashboardRefererMarker string) *Classifier {
	if desktopUserAgentPrefix == "" {
		desktopUserAgentPrefix = DefaultDesktopUserAgentPrefix
	}
	if dashboardRefererMarker == "" {
		dashboardRefererMarker = DefaultDashboardRefererMarker
	}
	return &Classifier{desktopUserAgentPrefix, dashboardRefererMarker}
}

var defaultClassifier = NewClassifier("", "")

// Classify runs the default classifier.
func Classify(in Input) Classification {
	return defaultClassifier.Classify(in)
}

func (c *Classifier) Classify(in Input) Classification {
	out := Classification{IsNew: in.IsNew}

	switch {
	case in.Supplied:
		out.Source = in.UpdateSource
	case strings.HasPrefix(in.UserAgent, c.desktopUserAgentPrefix):
		out.Source = LegacyDesktop
		out.SetUploadTimestamp = true
	case strings.Contains(in.Referer, c.dashboardRefererMarker):
		out.Source = Dashboard
	default:
		out.Source = Unknown
	}

	out.IsNewUploadViaTwoPhaseAPI = IsTwoPhaseNewBook(out.Source)
	return out
}

func IsDesktopSource(source string) bool {
	return strings.HasPrefix(source, DesktopPrefix) || source == LegacyDesktop
}

func IsTwoPhaseNewBook(source string) bool {
	return strings.HasPrefix(source, DesktopPrefix) && strings.HasSuffix(source, NewBookSuffix)
}

// IsReserved reports whether source belongs to a maintenance job.
func IsReserved(source string) bool {
	return strings.HasPrefix(source, "maintenance:")
}
