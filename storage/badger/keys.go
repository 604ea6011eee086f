package badger

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/pulse/core"
)

// Key prefixes for different data types
const (
	postPrefix       = "post:"
	postDatePrefix   = "postd:"
	insightPrefix    = "ins:"
	vectorPrefix     = "vec:"
	checkpointSuffix = ":chkpt"
)

// makePostKey generates a key for a post by ID.
// Format: prefix + 8-byte big-endian ID
func makePostKey(id core.ID) []byte {
	buf := make([]byte, len(postPrefix)+8)
	offset := copy(buf, postPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePostDateKey generates a composite key for the creation date index.
// Format: prefix:timestamp:id
func makePostDateKey(timestamp time.Time, id core.ID) []byte {
	buf := make([]byte, len(postDatePrefix)+16)
	offset := copy(buf, postDatePrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialPostDateKey generates a partial key for date range scans.
func makePartialPostDateKey(timestamp time.Time) []byte {
	buf := make([]byte, len(postDatePrefix)+8)
	offset := copy(buf, postDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}

// makeInsightScope generates the prefix shared by insights of one
// product, platform and timeframe.
func makeInsightScope(productID, platform, timeframe string) []byte {
	return []byte(insightPrefix + productID + "|" + platform + "|" + timeframe + ":")
}

// makeInsightKey generates a key for an insight.
// Format: ins:product|platform|timeframe:uuid
func makeInsightKey(insight *core.Insight) []byte {
	scope := makeInsightScope(insight.ProductID, insight.Platform, insight.Timeframe)
	buf := make([]byte, len(scope), len(scope)+len(uuid.UUID{}))
	copy(buf, scope)
	return append(buf, insight.ID[:]...)
}

// makeVectorTypePrefix generates the prefix for vectors of one content type.
func makeVectorTypePrefix(contentType string) []byte {
	return []byte(vectorPrefix + contentType + ":")
}

// makeVectorKey generates a key for an indexed record.
// Format: vec:type:contentID
func makeVectorKey(contentType, contentID string) []byte {
	return append(makeVectorTypePrefix(contentType), contentID...)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(processorType + checkpointSuffix)
}
