package plangenerator

import (
	"fmt"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/payloadregistry"
	"github.com/hashicorp/go-multierror"
)

// RegisterPayloads registers the plan trigger and result payloads with reg.
func RegisterPayloads(reg *payloadregistry.Registry) error {
	registrations := []*payloadregistry.Registration{
		{
			Domain:      PlanTriggerType.Domain,
			Category:    PlanTriggerType.Category,
			Version:     PlanTriggerType.Version,
			Description: "Weekly training plan generation trigger",
			Factory:     func() any { return &PlanTrigger{} },
		},
		{
			Domain:      PlanResultType.Domain,
			Category:    PlanResultType.Category,
			Version:     PlanResultType.Version,
			Description: "Generated weekly training plan with quality verdict",
			Factory:     func() any { return &PlanResult{} },
		},
	}

	var result *multierror.Error
	for _, r := range registrations {
		if err := reg.Register(r); err != nil {
			result = multierror.Append(result, fmt.Errorf("register %s: %w", r.MessageType(), err))
		}
	}
	return result.ErrorOrNil()
}

// ensurePayloads registers the payloads unless a shared registry already
// holds them.
func ensurePayloads(reg *payloadregistry.Registry) error {
	if _, ok := reg.GetRegistration(PlanTriggerType.String()); ok {
		return nil
	}
	return RegisterPayloads(reg)
}

// defaultDecoder resolves BaseMessage envelopes when no shared registry is
// injected.
var defaultDecoder = newDecoder()

func newDecoder() *message.Decoder {
	reg := payloadregistry.New()
	if err := RegisterPayloads(reg); err != nil {
		panic("failed to register plan-generator payloads: " + err.Error())
	}
	return message.NewDecoder(reg)
}
