package ssc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Default subscription cadence requested from receivers.
const (
	// DefaultMinInterval is the floor between notifications for one field group.
	DefaultMinInterval = 1000 * time.Millisecond

	// DefaultMaxInterval of zero asks the receiver to notify on change only.
	DefaultMaxInterval = 0
)

// =============================================================================
// Outbound: subscription request
// =============================================================================

// Cadence is the notification period requested in a subscription.
type Cadence struct {
	Min time.Duration
	Max time.Duration
}

// subscribeRequest is {"osc":{"state":{"subscribe":[...],"min":..,"max":..}}}.
type subscribeRequest struct {
	OSC struct {
		State struct {
			Subscribe []any `json:"subscribe"`
			Min       int64 `json:"min"`
			Max       int64 `json:"max"`
		} `json:"state"`
	} `json:"osc"`
}

// channelSelector lists every rx attribute of interest. Nil values encode
// as null, which is how SSC marks a field as requested.
type channelSelector struct {
	Frequency any `json:"frequency"`
	Gain      any `json:"gain"`
	Mute      any `json:"mute"`
	Name      any `json:"name"`
	Warnings  any `json:"warnings"`
	Mates     any `json:"mates"`
}

func mateSelector(mate string, field map[string]any) map[string]any {
	return map[string]any{"mates": map[string]any{mate: field}}
}

// subscribeSelectors returns the field selectors in the order receivers
// expect them: battery and mute per mate, device name, then both channels.
func subscribeSelectors() []any {
	battery := func() map[string]any {
		return map[string]any{"battery": map[string]any{"lifetime": nil}}
	}
	mute := func() map[string]any {
		return map[string]any{"mute": nil}
	}

	return []any{
		mateSelector("tx1", battery()),
		mateSelector("tx2", battery()),
		mateSelector("tx1", mute()),
		mateSelector("tx2", mute()),
		map[string]any{"device": map[string]any{"name": nil}},
		map[string]channelSelector{"rx1": {}},
		map[string]channelSelector{"rx2": {}},
	}
}

// BuildSubscribeRequest encodes the subscription sent to every receiver.
// The same bytes are used for the initial subscription and each renewal.
func BuildSubscribeRequest(c Cadence) ([]byte, error) {
	if c.Min < 0 || c.Max < 0 {
		return nil, fmt.Errorf("ssc: negative cadence %v/%v", c.Min, c.Max)
	}

	var req subscribeRequest
	req.OSC.State.Subscribe = subscribeSelectors()
	req.OSC.State.Min = c.Min.Milliseconds()
	req.OSC.State.Max = c.Max.Milliseconds()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ssc: encoding subscription: %w", err)
	}
	return data, nil
}

// =============================================================================
// Inbound: state updates
// =============================================================================

// Update is one decoded notification. Every sub-record is optional; a JSON
// null or a value of the wrong type is treated the same as an absent key.
type Update struct {
	Device Optional[DeviceRecord]  `json:"device"`
	RX1    Optional[ChannelRecord] `json:"rx1"`
	RX2    Optional[ChannelRecord] `json:"rx2"`
	Mates  Optional[MatesRecord]   `json:"mates"`
}

// Channel returns the rx record for channel n (1 or 2), or nil.
func (u Update) Channel(n int) *ChannelRecord {
	var rec Optional[ChannelRecord]
	switch n {
	case 1:
		rec = u.RX1
	case 2:
		rec = u.RX2
	}
	if !rec.Present {
		return nil
	}
	return &rec.Value
}

// Mate returns the tx mate record paired with channel n (1 or 2), or nil.
func (u Update) Mate(n int) *MateRecord {
	if !u.Mates.Present {
		return nil
	}
	var rec Optional[MateRecord]
	switch n {
	case 1:
		rec = u.Mates.Value.TX1
	case 2:
		rec = u.Mates.Value.TX2
	}
	if !rec.Present {
		return nil
	}
	return &rec.Value
}

// DeviceName returns the device-level name if present.
func (u Update) DeviceName() (string, bool) {
	if !u.Device.Present {
		return "", false
	}
	return u.Device.Value.Name.Get()
}

// DeviceRecord holds device-global fields.
type DeviceRecord struct {
	Name Optional[string] `json:"name"`
}

// ChannelRecord holds the rx attributes of one channel.
type ChannelRecord struct {
	Frequency Optional[Scalar]   `json:"frequency"`
	Gain      Optional[Scalar]   `json:"gain"`
	Name      Optional[string]   `json:"name"`
	Warnings  Optional[TextList] `json:"warnings"`
	Mates     Optional[TextList] `json:"mates"`
}

// MatesRecord holds the paired transmitter records.
type MatesRecord struct {
	TX1 Optional[MateRecord] `json:"tx1"`
	TX2 Optional[MateRecord] `json:"tx2"`
}

// MateRecord holds one transmitter's mute flag and battery reading.
type MateRecord struct {
	Mute    Optional[bool]          `json:"mute"`
	Battery Optional[BatteryRecord] `json:"battery"`
}

// BatteryRecord holds the remaining battery lifetime in minutes.
type BatteryRecord struct {
	Lifetime Optional[float64] `json:"lifetime"`
}

// BatteryMinutes returns the reported lifetime in minutes.
func (m *MateRecord) BatteryMinutes() (float64, bool) {
	if m == nil || !m.Battery.Present {
		return 0, false
	}
	return m.Battery.Value.Lifetime.Get()
}

// Optional is a decoded value that may be absent. Null and values whose
// JSON type does not fit T decode as absent instead of failing the whole
// datagram.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Get returns the value and whether it was present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// UnmarshalJSON decodes data into T, leaving o absent on null or a type
// mismatch. Syntax has already been checked by the enclosing decode, so
// any error here is a mismatch.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	*o = Optional[T]{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*o = Optional[T]{Value: v, Present: true}
	return nil
}

// Scalar is a value receivers send as either a JSON string or number.
// The text is kept as received so "470.100" and 5 render unchanged.
type Scalar struct {
	text string
}

// UnmarshalJSON accepts a JSON string or number.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s.text = str
		return nil
	}

	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return fmt.Errorf("scalar must be a string or number: %s", data)
	}
	s.text = num.String()
	return nil
}

// MarshalJSON encodes the scalar as a JSON string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.text)
}

// String returns the scalar as received.
func (s Scalar) String() string {
	return s.text
}

// TextList is a JSON array of strings or numbers, kept as strings.
type TextList []string

// UnmarshalJSON decodes an array whose elements are strings or numbers.
func (l *TextList) UnmarshalJSON(data []byte) error {
	var items []Scalar
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(TextList, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	*l = out
	return nil
}
