package models

import "context"

// MetadataProvenance describes where project metadata came from.
type MetadataProvenance string

const (
	// ProvenanceMeasured metadata was read from a real source repository.
	ProvenanceMeasured MetadataProvenance = "measured"
	// ProvenanceEstimated metadata was synthesised from the project record.
	ProvenanceEstimated MetadataProvenance = "estimated"
)

// String returns the string representation of a MetadataProvenance.
func (p MetadataProvenance) String() string {
	return string(p)
}

// IsValid returns true if the provenance is a known value.
func (p MetadataProvenance) IsValid() bool {
	switch p {
	case ProvenanceMeasured, ProvenanceEstimated:
		return true
	default:
		return false
	}
}

// TriggerSource identifies which surface started an analysis run.
type TriggerSource string

const (
	TriggerHTTP TriggerSource = "http"
	TriggerMCP  TriggerSource = "mcp"
	TriggerCLI  TriggerSource = "cli"
)

type triggerKey struct{}

// WithTrigger returns a context carrying the trigger source.
func WithTrigger(ctx context.Context, source TriggerSource) context.Context {
	return context.WithValue(ctx, triggerKey{}, source)
}

// GetTrigger returns the trigger source from ctx, defaulting to TriggerHTTP.
func GetTrigger(ctx context.Context) TriggerSource {
	if s, ok := ctx.Value(triggerKey{}).(TriggerSource); ok {
		return s
	}
	return TriggerHTTP
}
