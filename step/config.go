package step

import "encoding/json"

// Kind discriminates the Config tagged union.
type Kind string

const (
	KindAPI   Kind = "api"
	KindEvent Kind = "event"
	KindCron  Kind = "cron"
	KindNoop  Kind = "noop"
)

// HTTPMethod names the HTTP verb of an API step; the constants below list
// the accepted verbs. Loading and registration do not check
// APIConfig.Method against them.
type HTTPMethod string

const (
	MethodGET     HTTPMethod = "GET"
	MethodPOST    HTTPMethod = "POST"
	MethodPUT     HTTPMethod = "PUT"
	MethodDELETE  HTTPMethod = "DELETE"
	MethodPATCH   HTTPMethod = "PATCH"
	MethodOPTIONS HTTPMethod = "OPTIONS"
	MethodHEAD    HTTPMethod = "HEAD"
)

// Emit is either a bare topic string or the structured form with a label and
// a conditional flag, unmarshaled from whichever shape the step file used.
type Emit struct {
	Topic       string
	Label       string
	Conditional bool
}

// UnmarshalJSON accepts either a JSON string ("topic") or an object
// ({"topic":"...","label":"...","conditional":true}).
func (e *Emit) UnmarshalJSON(data []byte) error {
	var topic string
	if err := json.Unmarshal(data, &topic); err == nil {
		e.Topic = topic
		return nil
	}
	type shape struct {
		Topic       string `json:"topic"`
		Label       string `json:"label,omitempty"`
		Conditional bool   `json:"conditional,omitempty"`
	}
	var s shape
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	e.Topic, e.Label, e.Conditional = s.Topic, s.Label, s.Conditional
	return nil
}

// MarshalJSON emits the structured form only when label/conditional are set,
// otherwise the bare topic string, mirroring what step authors write.
func (e Emit) MarshalJSON() ([]byte, error) {
	if e.Label == "" && !e.Conditional {
		return json.Marshal(e.Topic)
	}
	type shape struct {
		Topic       string `json:"topic"`
		Label       string `json:"label,omitempty"`
		Conditional bool   `json:"conditional,omitempty"`
	}
	return json.Marshal(shape{e.Topic, e.Label, e.Conditional})
}

// APIConfig is the "api" variant: an HTTP-triggered step.
type APIConfig struct {
	Name       string
	Path       string
	Method     HTTPMethod
	Emits      []Emit
	BodySchema json.RawMessage
	Middleware []string
	Flows      []string
}

// EventConfig is the "event" variant: a topic-triggered step.
type EventConfig struct {
	Name        string
	Subscribes  []string
	Emits       []Emit
	InputSchema json.RawMessage
	Flows       []string
}

// CronConfig is the "cron" variant: a time-triggered step.
type CronConfig struct {
	Name           string
	CronExpression string
	Emits          []Emit
	Flows          []string
}

// NoopConfig is the "noop" variant: a topology-only node that participates
// in the topic graph but is never executed.
type NoopConfig struct {
	Name              string
	VirtualEmits      []string
	VirtualSubscribes []string
	Flows             []string
}

// Config is the tagged union over the four step variants. Exactly one of
// API/Event/Cron/Noop is non-nil, matching Kind.
type Config struct {
	Kind  Kind
	API   *APIConfig
	Event *EventConfig
	Cron  *CronConfig
	Noop  *NoopConfig
}

// Name returns the variant's Name field, exhaustively matched.
func (c Config) Name() string {
	switch c.Kind {
	case KindAPI:
		return c.API.Name
	case KindEvent:
		return c.Event.Name
	case KindCron:
		return c.Cron.Name
	case KindNoop:
		return c.Noop.Name
	default:
		return ""
	}
}

// Emits returns the topics this step's variant declares it may emit. Noop
// steps report VirtualEmits as bare Emit values for topology purposes only;
// they are never actually dispatched since noop steps are never executed.
func (c Config) Emits() []Emit {
	switch c.Kind {
	case KindAPI:
		return c.API.Emits
	case KindEvent:
		return c.Event.Emits
	case KindCron:
		return c.Cron.Emits
	case KindNoop:
		out := make([]Emit, len(c.Noop.VirtualEmits))
		for i, t := range c.Noop.VirtualEmits {
			out[i] = Emit{Topic: t}
		}
		return out
	default:
		return nil
	}
}

// Subscribes returns the topics this step's variant declares it consumes.
// Only "event" and "noop" steps subscribe to topics.
func (c Config) Subscribes() []string {
	switch c.Kind {
	case KindEvent:
		return c.Event.Subscribes
	case KindNoop:
		return c.Noop.VirtualSubscribes
	default:
		return nil
	}
}

// Flows returns the variant's Flows field, exhaustively matched.
func (c Config) Flows() []string {
	switch c.Kind {
	case KindAPI:
		return c.API.Flows
	case KindEvent:
		return c.Event.Flows
	case KindCron:
		return c.Cron.Flows
	case KindNoop:
		return c.Noop.Flows
	default:
		return nil
	}
}

// Executable reports whether the runtime should ever spawn a worker for
// this step. Noop steps exist only in the topology graph.
func (c Config) Executable() bool {
	return c.Kind != KindNoop
}

// Schema returns the variant's declared payload schema: BodySchema for api
// steps, InputSchema for event steps. Cron and noop steps have no triggering
// payload and always return nil.
func (c Config) Schema() json.RawMessage {
	switch c.Kind {
	case KindAPI:
		return c.API.BodySchema
	case KindEvent:
		return c.Event.InputSchema
	default:
		return nil
	}
}
