package domain

import "fmt"

// Topic is an immutable snapshot of one topic's metadata. A fresh value
// replaces the old one on every directory fetch or poll update.
type Topic struct {
	Name              string
	PartitionCount    int
	ReplicationFactor int
	Partitions        []Partition
}

// Partition describes one partition of a topic. ID is the backend's
// partition identifier and is not the partition's position in Topic.Partitions.
type Partition struct {
	ID           int
	MessageCount int64
}

// MessageRange is an inclusive offset window within a partition
type MessageRange struct {
	Start int64
	End   int64
}

// Message is a single record fetched from a partition
type Message struct {
	Offset  int64
	Payload string
}

// SearchMatch is one keyword hit streamed by a search channel
type SearchMatch struct {
	PartitionID int
	Offset      int64
	Payload     string
}

// Partition returns the partition with the given id.
func (t Topic) Partition(id int) (Partition, bool) {
	for _, p := range t.Partitions {
		if p.ID == id {
			return p, true
		}
	}
	return Partition{}, false
}

// PartitionIDs returns partition ids in the order the backend reported them
func (t Topic) PartitionIDs() []int {
	ids := make([]int, 0, len(t.Partitions))
	for _, p := range t.Partitions {
		ids = append(ids, p.ID)
	}
	return ids
}

// TotalMessages sums message counts over all partitions
func (t Topic) TotalMessages() int64 {
	var total int64
	for _, p := range t.Partitions {
		total += p.MessageCount
	}
	return total
}

// Equal reports whether o carries the same metadata, partition order included
func (t Topic) Equal(o Topic) bool {
	if t.Name != o.Name || t.PartitionCount != o.PartitionCount ||
		t.ReplicationFactor != o.ReplicationFactor || len(t.Partitions) != len(o.Partitions) {
		return false
	}
	for i := range t.Partitions {
		if t.Partitions[i] != o.Partitions[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can't mutate a shared snapshot.
func (t Topic) Clone() Topic {
	out := t
	out.Partitions = append([]Partition(nil), t.Partitions...)
	return out
}

// Len returns the number of offsets covered by the range.
func (r MessageRange) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// String renders the range in the "<start>-<end>" form used in request paths
func (r MessageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// MatchList accumulates search matches in arrival order.
type MatchList struct {
	Topic   string
	Keyword string
	Matches []SearchMatch
}

// Append adds a match after all previously received ones
func (l *MatchList) Append(m SearchMatch) {
	l.Matches = append(l.Matches, m)
}

// Reset starts a new accumulation for a superseding search
func (l *MatchList) Reset(topic, keyword string) {
	l.Topic = topic
	l.Keyword = keyword
	l.Matches = nil
}

// Len returns the number of accumulated matches
func (l *MatchList) Len() int {
	return len(l.Matches)
}
