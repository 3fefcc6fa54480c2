// Package wire decodes backend payloads into domain values. Every payload is
// checked against a JSON Schema before it is unmarshalled.
package wire

import (
	"encoding/json"
	"fmt"

	"kafkaviz/internal/domain"
)

// Envelope is the {"result": [...]} wrapper around topic metadata
type Envelope struct {
	Result []TopicMetadata `json:"result"`
}

// TopicMetadata is one topic as the backend reports it
type TopicMetadata struct {
	Name          string              `json:"name"`
	Partitions    *int                `json:"partitions,omitempty"`
	Replication   int                 `json:"replication"`
	PartitionInfo []PartitionMetadata `json:"partition_info"`
}

// PartitionMetadata is one partition_info entry
type PartitionMetadata struct {
	ID     int   `json:"id"`
	Length int64 `json:"length"`
}

// MessageRecord is one element of a partition data response
type MessageRecord struct {
	Offset  int64  `json:"offset"`
	Message string `json:"message"`
}

// MatchRecord is one search channel frame
type MatchRecord struct {
	Partition int    `json:"partition"`
	Offset    int64  `json:"offset"`
	Message   string `json:"message"`
}

// DecodeEnvelope validates and decodes a metadata envelope. The sentinel
// entry with an empty name is passed through; callers decide what it means.
func DecodeEnvelope(data []byte) ([]domain.Topic, error) {
	if err := validate(envelopeSchema, data); err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	topics := make([]domain.Topic, 0, len(env.Result))
	for _, tm := range env.Result {
		t, err := tm.toDomain()
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// DecodeMessages validates and decodes a partition data response, keeping
// the backend's order.
func DecodeMessages(data []byte) ([]domain.Message, error) {
	if err := validate(messagesSchema, data); err != nil {
		return nil, err
	}
	var records []MessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]domain.Message, len(records))
	for i, r := range records {
		out[i] = domain.Message{Offset: r.Offset, Payload: r.Message}
	}
	return out, nil
}

// DecodeMatch validates and decodes one search frame
func DecodeMatch(data []byte) (domain.SearchMatch, error) {
	if err := validate(matchSchema, data); err != nil {
		return domain.SearchMatch{}, err
	}
	var r MatchRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.SearchMatch{}, fmt.Errorf("decode match: %w", err)
	}
	return domain.SearchMatch{PartitionID: r.Partition, Offset: r.Offset, Payload: r.Message}, nil
}

// EncodeEnvelope is the inverse of DecodeEnvelope, used by fakes and tools
func EncodeEnvelope(topics []domain.Topic) ([]byte, error) {
	env := Envelope{Result: make([]TopicMetadata, 0, len(topics))}
	for _, t := range topics {
		count := t.PartitionCount
		tm := TopicMetadata{
			Name:          t.Name,
			Partitions:    &count,
			Replication:   t.ReplicationFactor,
			PartitionInfo: make([]PartitionMetadata, 0, len(t.Partitions)),
		}
		for _, p := range t.Partitions {
			tm.PartitionInfo = append(tm.PartitionInfo, PartitionMetadata{ID: p.ID, Length: p.MessageCount})
		}
		env.Result = append(env.Result, tm)
	}
	return json.Marshal(env)
}

func (tm TopicMetadata) toDomain() (domain.Topic, error) {
	t := domain.Topic{
		Name:              tm.Name,
		ReplicationFactor: tm.Replication,
		Partitions:        make([]domain.Partition, 0, len(tm.PartitionInfo)),
	}
	seen := make(map[int]bool, len(tm.PartitionInfo))
	for _, pm := range tm.PartitionInfo {
		if seen[pm.ID] {
			return domain.Topic{}, &SchemaError{Violations: []string{
				fmt.Sprintf("topic %q: duplicate partition id %d", tm.Name, pm.ID),
			}}
		}
		seen[pm.ID] = true
		t.Partitions = append(t.Partitions, domain.Partition{ID: pm.ID, MessageCount: pm.Length})
	}
	if tm.Partitions != nil {
		t.PartitionCount = *tm.Partitions
	} else {
		t.PartitionCount = len(t.Partitions)
	}
	return t, nil
}
