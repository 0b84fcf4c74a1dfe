package agent

import (
	"github.com/randalmurphal/llmkit/model"

	issueflow "github.com/randalmurphal/issueflow"
)

// DefaultModelMap maps stage capabilities to the models that suit them.
// Refining and architecting need reasoning; the rest is standard
// development work.
var DefaultModelMap = map[issueflow.Capability]model.ModelName{
	issueflow.CapabilityRefine:    model.ModelOpus,
	issueflow.CapabilityArchitect: model.ModelOpus,
	issueflow.CapabilityDesign:    model.ModelSonnet,
	issueflow.CapabilityImplement: model.ModelSonnet,
	issueflow.CapabilityTest:      model.ModelSonnet,
	issueflow.CapabilityVerify:    model.ModelSonnet,
}

// TierFor returns the model tier for a stage capability.
func TierFor(c issueflow.Capability) model.Tier {
	switch c {
	case issueflow.CapabilityRefine, issueflow.CapabilityArchitect:
		return model.TierThinking
	default:
		return model.TierDefault
	}
}

// NewSelector creates a model selector keyed by stage capability.
func NewSelector(opts ...model.SelectorOption) *model.Selector {
	allOpts := append([]model.SelectorOption{
		model.WithTierFunc(func(task any) model.Tier {
			if c, ok := task.(issueflow.Capability); ok {
				return TierFor(c)
			}
			return model.TierDefault
		}),
	}, opts...)

	return model.NewSelector(allOpts...)
}

// SelectModel returns the model for a capability, falling back to
// tier-based selection for unknown capabilities.
func SelectModel(c issueflow.Capability) model.ModelName {
	if m, ok := DefaultModelMap[c]; ok {
		return m
	}
	if TierFor(c) == model.TierThinking {
		return model.ModelOpus
	}
	return model.ModelSonnet
}
