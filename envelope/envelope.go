// Package envelope unwraps queue redeliveries back into domain events.
//
// A split event that was sent to SQS comes back to the function wrapped in a
// Lambda event-source payload: a JSON object with a "Records" array whose
// entries carry an "eventSource" origin marker and the original event
// serialized as a string "body". Unwrap recognizes that shape and returns the
// embedded event; anything else is reported as not applicable so the caller can
// treat the raw payload as a direct event.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// DefaultOrigin is the eventSource value SQS stamps on redelivered records.
const DefaultOrigin = "aws:sqs"

// Envelope is the queue redelivery wrapper. It is wire compatible with the
// Lambda SQS event.
type Envelope = events.SQSEvent

// Record is a single redelivered message inside an Envelope.
type Record = events.SQSMessage

// Unwrapper extracts domain events from queue envelopes.
type Unwrapper struct {
	origin      string
	singleQuote bool
}

// Option configures an Unwrapper.
type Option func(*Unwrapper)

// WithOrigin sets the eventSource marker identifying qualifying records.
func WithOrigin(origin string) Option {
	return func(u *Unwrapper) {
		if origin != "" {
			u.origin = origin
		}
	}
}

// WithSingleQuoteBodies makes the Unwrapper replace every single quote in a
// record body with a double quote before decoding. Some producers serialize
// the event with single-quoted strings; enabling this corrupts bodies that
// legitimately contain apostrophes.
func WithSingleQuoteBodies() Option {
	return func(u *Unwrapper) {
		u.singleQuote = true
	}
}

// New creates an Unwrapper matching DefaultOrigin unless configured otherwise.
func New(opts ...Option) *Unwrapper {
	u := &Unwrapper{origin: DefaultOrigin}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Origin returns the eventSource marker the Unwrapper matches.
func (u *Unwrapper) Origin() string {
	return u.origin
}

// Unwrap inspects raw and returns the embedded domain event.
//
// The three outcomes are:
//   - (ev, true, nil): raw is an envelope and the first record whose
//     eventSource matches the origin carries a decodable event.
//   - (nil, false, nil): raw is not an envelope, has no matching record, or
//     the matching record has no body. The caller should treat raw itself as
//     the event.
//   - (nil, false, err): the matching record's body is not a JSON object. The
//     error carries errors.CodeParseFailed; the message is a poison message.
//
// Only the first matching record is considered. Lambda delivers one record per
// invocation with the batch size the splitter is deployed with; additional
// records are ignored.
func (u *Unwrapper) Unwrap(raw []byte) (event.Event, bool, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, false, nil
	}

	recordsRaw, ok := top["Records"]
	if !ok {
		return nil, false, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(recordsRaw, &records); err != nil {
		return nil, false, nil
	}

	for i, recRaw := range records {
		var rec map[string]json.RawMessage
		if err := json.Unmarshal(recRaw, &rec); err != nil {
			continue
		}
		var source string
		if err := json.Unmarshal(rec["eventSource"], &source); err != nil || source != u.origin {
			continue
		}

		bodyRaw, ok := rec["body"]
		if !ok || string(bodyRaw) == "null" {
			return nil, false, nil
		}
		ev, err := u.decodeBody(bodyRaw)
		if err != nil {
			return nil, false, errors.WrapWithContext(err, errors.CodeParseFailed,
				"queued message body is not a valid event",
				map[string]any{"record": i, "origin": u.origin})
		}
		return ev, true, nil
	}

	return nil, false, nil
}

func (u *Unwrapper) decodeBody(bodyRaw json.RawMessage) (event.Event, error) {
	var body string
	if err := json.Unmarshal(bodyRaw, &body); err != nil {
		return nil, fmt.Errorf("record body is not a string: %w", err)
	}
	if u.singleQuote {
		body = strings.ReplaceAll(body, "'", `"`)
	}
	return event.Decode([]byte(body))
}

// Wrap serializes ev and embeds it in a single-record envelope with the given
// origin marker. An empty origin means DefaultOrigin.
func Wrap(ev event.Event, origin string) ([]byte, error) {
	body, err := ev.Marshal()
	if err != nil {
		return nil, err
	}
	if origin == "" {
		origin = DefaultOrigin
	}
	return Encode(Record{Body: string(body), EventSource: origin})
}

// Encode serializes records as an envelope.
func Encode(records ...Record) ([]byte, error) {
	data, err := json.Marshal(Envelope{Records: records})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}
