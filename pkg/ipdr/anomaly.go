package ipdr

// AnomalyTag labels a session that deviates from expected behavior.
// Tags are derived by classification rules and never stored independently
// of the record that produced them.
type AnomalyTag string

const (
	TagHighDataUsage     AnomalyTag = "HIGH_DATA_USAGE"
	TagOffHoursActivity  AnomalyTag = "OFF_HOURS_ACTIVITY"
	TagHighConnectivity  AnomalyTag = "HIGH_CONNECTIVITY"
	TagSuspiciousService AnomalyTag = "SUSPICIOUS_SERVICE"
)

// AllAnomalyTags lists every tag in its canonical order. Consumers that need
// deterministic output iterate this slice rather than ranging over maps.
var AllAnomalyTags = []AnomalyTag{
	TagHighDataUsage,
	TagOffHoursActivity,
	TagHighConnectivity,
	TagSuspiciousService,
}

// TagSet is a set of anomaly tags attached to a single session.
type TagSet map[AnomalyTag]struct{}

// NewTagSet builds a set from the given tags.
func NewTagSet(tags ...AnomalyTag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the tag.
func (s TagSet) Has(tag AnomalyTag) bool {
	_, ok := s[tag]
	return ok
}

// Add inserts a tag into the set.
func (s TagSet) Add(tag AnomalyTag) {
	s[tag] = struct{}{}
}

// Ordered returns the set's tags in canonical order.
func (s TagSet) Ordered() []AnomalyTag {
	out := make([]AnomalyTag, 0, len(s))
	for _, t := range AllAnomalyTags {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Equal reports whether two sets contain exactly the same tags.
func (s TagSet) Equal(other TagSet) bool {
	if len(s) != len(other) {
		return false
	}
	for t := range s {
		if !other.Has(t) {
			return false
		}
	}
	return true
}
