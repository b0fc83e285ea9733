package docstore

import "fmt"

// Key layout. Identifiers never contain '/', so a simple join is safe.
const (
	contentPrefix = "content/"
	userPrefix    = "user/"
	votePrefix    = "vote/"
	subPrefix     = "sub/"
	subIdxPrefix  = "subidx/"
	readPrefix    = "readstate/"
	statPrefix    = "stat/"

	subSeqKey = "seq/subscription"
)

func contentKey(id string) []byte {
	return []byte(contentPrefix + id)
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

func voteKey(contentID, userID string) []byte {
	return []byte(votePrefix + contentID + "/" + userID)
}

func voteKeysFor(contentID string) []byte {
	return []byte(votePrefix + contentID + "/")
}

func subKey(subscriberID, sourceType, sourceID string) []byte {
	return []byte(subPrefix + subscriberID + "/" + sourceType + "/" + sourceID)
}

func subKeysFor(subscriberID, sourceType string) []byte {
	return []byte(subPrefix + subscriberID + "/" + sourceType + "/")
}

// subIdxKey orders a source's subscriptions by insertion seq; the
// fixed-width seq keeps badger's lexicographic key order numeric.
func subIdxKey(sourceType, sourceID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%020d", subIdxPrefix, sourceType, sourceID, seq))
}

func subIdxKeysFor(sourceType, sourceID string) []byte {
	return []byte(subIdxPrefix + sourceType + "/" + sourceID + "/")
}

func readKey(userID, courseID string) []byte {
	return []byte(readPrefix + userID + "/" + courseID)
}

func statKey(courseID, userID string) []byte {
	return []byte(statPrefix + courseID + "/" + userID)
}

func statKeysFor(courseID string) []byte {
	return []byte(statPrefix + courseID + "/")
}
