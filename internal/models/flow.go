package models

import (
	"encoding/json"
	"fmt"
)

const (
	FlowOnboarding    = "onboarding"
	FlowCompatibility = "compatibility"
)

// FlowPayload is the data a single flow accumulates across its steps.
type FlowPayload interface {
	FlowName() string
}

// OnboardingData collects the birth profile of a new user.
type OnboardingData struct {
	Name       string `json:"name,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"` // YYYY-MM-DD
	BirthTime  string `json:"birth_time,omitempty"` // HH:MM
	BirthPlace string `json:"birth_place,omitempty"`
}

func (OnboardingData) FlowName() string { return FlowOnboarding }

// CompatibilityData collects the partner details of a compatibility reading.
type CompatibilityData struct {
	PartnerName      string `json:"partner_name,omitempty"`
	PartnerBirthDate string `json:"partner_birth_date,omitempty"`
}

func (CompatibilityData) FlowName() string { return FlowCompatibility }

// FlowData wraps a FlowPayload so it can be stored as tagged JSON:
// {"flow":"onboarding","data":{...}}.
type FlowData struct {
	Payload FlowPayload
}

type flowEnvelope struct {
	Flow string          `json:"flow"`
	Data json.RawMessage `json:"data"`
}

func (d FlowData) MarshalJSON() ([]byte, error) {
	if d.Payload == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(d.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(flowEnvelope{Flow: d.Payload.FlowName(), Data: data})
}

func (d *FlowData) UnmarshalJSON(b []byte) error {
	d.Payload = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	var env flowEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var payload FlowPayload
	switch env.Flow {
	case FlowOnboarding:
		p := &OnboardingData{}
		if err := json.Unmarshal(env.Data, p); err != nil {
			return err
		}
		payload = *p
	case FlowCompatibility:
		p := &CompatibilityData{}
		if err := json.Unmarshal(env.Data, p); err != nil {
			return err
		}
		payload = *p
	case "":
		return nil
	default:
		return fmt.Errorf("unknown flow payload %q", env.Flow)
	}
	d.Payload = payload
	return nil
}

// Onboarding returns the onboarding payload, or an empty one when the stored
// payload belongs to another flow.
func (d FlowData) Onboarding() OnboardingData {
	if p, ok := d.Payload.(OnboardingData); ok {
		return p
	}
	return OnboardingData{}
}

// Compatibility returns the compatibility payload, or an empty one.
func (d FlowData) Compatibility() CompatibilityData {
	if p, ok := d.Payload.(CompatibilityData); ok {
		return p
	}
	return CompatibilityData{}
}

// FlowState is the envelope a flow reads and returns: which flow, which step,
// and its typed payload.
type FlowState struct {
	Name string
	Step int
	Data FlowData
}

// Active reports whether the state names a flow.
func (s FlowState) Active() bool { return s.Name != "" }
