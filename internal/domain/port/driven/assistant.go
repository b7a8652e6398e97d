package driven

import (
	"context"

	"github.com/ericfisherdev/aide/internal/domain/model"
)

// Classifier is the driven port for message triage classification.
type Classifier interface {
	Classify(ctx context.Context, msg model.Message) (*model.Classification, error)
}

// BriefWriter is the driven port for language-model text generation: one
// brief per meeting, one digest across a batch of messages.
type BriefWriter interface {
	WriteBrief(ctx context.Context, event model.Event) (string, error)
	WriteDigest(ctx context.Context, msgs []model.Message) (string, error)
}
