package agenda

import (
	"regexp"
	"strings"
)

// Bucket is the normalized outcome of a booking's free-text status.
type Bucket string

const (
	BucketCompleted Bucket = "completed"
	BucketNoShow    Bucket = "no_show"
	BucketCancelled Bucket = "cancelled"
	BucketOther     Bucket = "other"
)

// Status strings come from whatever the calendar provider emits, so
// classification is pattern matching over lowercase input. Ordering is part
// of the contract: no-show patterns win over cancellation, cancellation
// wins over completion, anything else is "other".
var (
	reNoShow    = regexp.MustCompile(`no[\s_-]?show|missed|did[_\s-]?not[_\s-]?attend`)
	reCancelled = regexp.MustCompile(`cancel`)
	reCompleted = regexp.MustCompile(`completed|done|attend|served`)
)

// Classify maps a raw status string to its bucket. Any string, including
// empty, classifies; there is no error path.
func Classify(status string) Bucket {
	s := strings.ToLower(status)
	switch {
	case reNoShow.MatchString(s):
		return BucketNoShow
	case reCancelled.MatchString(s):
		return BucketCancelled
	case reCompleted.MatchString(s):
		return BucketCompleted
	default:
		return BucketOther
	}
}
