package plangenerator

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// planGeneratorSchema defines the configuration schema.
var planGeneratorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the plan-generator processor component.
type Config struct {
	// StreamName is the JetStream stream for consuming triggers and publishing results.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for plan triggers,category:basic,default:COACH"`

	// ConsumerName is the durable consumer name for trigger consumption.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for trigger consumption,category:basic,default:plan-generator"`

	// TriggerSubject is the subject pattern for plan triggers.
	TriggerSubject string `json:"trigger_subject" schema:"type:string,description:Subject pattern for plan triggers,category:basic,default:coach.trigger.plan"`

	// ResultSubjectPrefix is prepended to the request ID when the trigger
	// carries no callback subject.
	ResultSubjectPrefix string `json:"result_subject_prefix" schema:"type:string,description:Subject prefix for plan results,category:basic,default:coach.result.plan"`

	// Workers is the number of plans generated concurrently. Zero uses the
	// semcoach configuration.
	Workers int `json:"workers" schema:"type:int,description:Concurrent plan generations,category:advanced,default:2"`

	// AckWait bounds one generation, including fallback.
	AckWait string `json:"ack_wait" schema:"type:string,description:Time allowed for one generation before redelivery,category:advanced,default:10m"`

	// MaxDeliver is the number of delivery attempts per trigger.
	MaxDeliver int `json:"max_deliver" schema:"type:int,description:Delivery attempts per trigger,category:advanced,default:3"`

	// HistoryWeeks is the number of archived weeks added to requests that
	// name an athlete and carry no history.
	HistoryWeeks int `json:"history_weeks" schema:"type:int,description:Archived weeks added to athlete requests,category:advanced,default:4"`

	// DisableArchive turns off the COACH_PLANS archive.
	DisableArchive bool `json:"disable_archive" schema:"type:bool,description:Do not archive generated plans,category:advanced,default:false"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:          "COACH",
		ConsumerName:        "plan-generator",
		TriggerSubject:      "coach.trigger.plan",
		ResultSubjectPrefix: "coach.result.plan",
		Workers:             2,
		AckWait:             "10m",
		MaxDeliver:          3,
		HistoryWeeks:        4,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "plan-triggers",
					Type:        "jetstream",
					Subject:     "coach.trigger.plan",
					StreamName:  "COACH",
					Description: "Receive plan generation triggers",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "plan-results",
					Type:        "jetstream",
					Subject:     "coach.result.plan.>",
					StreamName:  "COACH",
					Description: "Publish generated plans",
					Required:    false,
				},
			},
		},
	}
}

// withDefaults fills every unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StreamName == "" {
		c.StreamName = d.StreamName
	}
	if c.ConsumerName == "" {
		c.ConsumerName = d.ConsumerName
	}
	if c.TriggerSubject == "" {
		c.TriggerSubject = d.TriggerSubject
	}
	if c.ResultSubjectPrefix == "" {
		c.ResultSubjectPrefix = d.ResultSubjectPrefix
	}
	if c.AckWait == "" {
		c.AckWait = d.AckWait
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = d.MaxDeliver
	}
	if c.HistoryWeeks == 0 {
		c.HistoryWeeks = d.HistoryWeeks
	}
	if c.Ports == nil {
		c.Ports = d.Ports
	}
	return c
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.TriggerSubject == "" {
		return fmt.Errorf("trigger_subject is required")
	}
	if c.ResultSubjectPrefix == "" {
		return fmt.Errorf("result_subject_prefix is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.HistoryWeeks < 0 {
		return fmt.Errorf("history_weeks must not be negative")
	}
	if c.MaxDeliver < 1 {
		return fmt.Errorf("max_deliver must be at least 1")
	}
	if _, err := time.ParseDuration(c.AckWait); err != nil {
		return fmt.Errorf("invalid ack_wait %q: %w", c.AckWait, err)
	}
	return nil
}

// GetAckWait returns AckWait as a duration.
func (c *Config) GetAckWait() time.Duration {
	d, err := time.ParseDuration(c.AckWait)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
