package domain

import "time"

// Identity is the content fingerprint of a topic within its (platform, category) partition.
type Identity string

// String returns the hex form of the identity.
func (i Identity) String() string {
	return string(i)
}

// Short trims the identity for log output.
func (i Identity) Short() string {
	if len(i) <= 12 {
		return string(i)
	}
	return string(i[:12])
}

// TrackedTopic is the durable lifecycle record of a topic.
type TrackedTopic struct {
	Identity     Identity
	Platform     string
	Category     string
	Title        string
	CurrentRank  int
	PreviousRank *int
	// RankDelta is PreviousRank - CurrentRank: positive means the topic climbed.
	RankDelta   int
	HeatValue   *int64
	URL         string
	Tags        []string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	IsActive    bool
}

// TopicRef is the slim projection used for fuzzy title matching.
type TopicRef struct {
	Identity   Identity
	Title      string
	LastSeenAt time.Time
}
