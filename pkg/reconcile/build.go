package reconcile

import (
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// CheckBuild returns a version record when label differs from the last
// recorded label, and nil otherwise. An empty label is never recorded.
func CheckBuild(label, previous string, detectTime int64) *worldstate.VersionRecord {
	if label == "" || label == previous {
		return nil
	}
	return &worldstate.VersionRecord{DetectTime: detectTime, BuildLabel: label}
}
