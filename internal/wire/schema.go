package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Partition entries must carry their id: ids are not positions.
const partitionInfoSchema = `{
	"type": ["array", "null"],
	"items": {
		"type": "object",
		"required": ["id", "length"],
		"properties": {
			"id":     {"type": "integer", "minimum": 0},
			"length": {"type": "integer", "minimum": 0}
		}
	}
}`

// The empty-name sentinel may omit everything but its name.
const topicSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name":           {"type": "string"},
		"partitions":     {"type": "integer", "minimum": 0},
		"replication":    {"type": "integer", "minimum": 0},
		"partition_info": ` + partitionInfoSchema + `
	}
}`

const envelopeSchemaJSON = `{
	"type": "object",
	"required": ["result"],
	"properties": {
		"result": {"type": "array", "items": ` + topicSchema + `}
	}
}`

const messagesSchemaJSON = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["offset", "message"],
		"properties": {
			"offset":  {"type": "integer", "minimum": 0},
			"message": {"type": "string"}
		}
	}
}`

const matchSchemaJSON = `{
	"type": "object",
	"required": ["partition", "offset", "message"],
	"properties": {
		"partition": {"type": "integer", "minimum": 0},
		"offset":    {"type": "integer", "minimum": 0},
		"message":   {"type": "string"}
	}
}`

var (
	envelopeSchema = mustCompile(envelopeSchemaJSON)
	messagesSchema = mustCompile(messagesSchemaJSON)
	matchSchema    = mustCompile(matchSchemaJSON)
)

// ErrSchema is wrapped by every schema violation
var ErrSchema = errors.New("payload does not match schema")

// SchemaError lists the violations found in one payload
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s", ErrSchema, strings.Join(e.Violations, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

func mustCompile(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("wire: compile schema: %v", err))
	}
	return s
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// not JSON at all
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Violations: violations}
}
