package wikibase

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Data value types as they appear in the "type" member of a data value.
const (
	ValueTypeString          string = "string"
	ValueTypeEntityID        string = "wikibase-entityid"
	ValueTypeMonolingualText string = "monolingualtext"
	ValueTypeTime            string = "time"
	ValueTypeQuantity        string = "quantity"
	ValueTypeGlobeCoordinate string = "globecoordinate"
)

// DataValue keeps the raw json of a value together with its type. Decoding into a
// concrete value happens when the value is rendered.
type DataValue struct {
	Type  string
	Value json.RawMessage
}

type EntityIDValue struct {
	EntityType string `json:"entity-type"`
	NumericID  uint64 `json:"numeric-id,omitempty"`
	ID         string `json:"id,omitempty"`
}

type MonolingualTextValue struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type TimeValue struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

type QuantityValue struct {
	Amount     string  `json:"amount"`
	Unit       string  `json:"unit"`
	UpperBound *string `json:"upperBound,omitempty"`
	LowerBound *string `json:"lowerBound,omitempty"`
}

type GlobeCoordinateValue struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Precision *float64 `json:"precision"`
	Globe     string   `json:"globe"`
}

func newDataValue(valueType string, v any) DataValue {
	b, _ := json.Marshal(v)
	return DataValue{Type: valueType, Value: b}
}

func NewStringValue(s string) DataValue {
	return newDataValue(ValueTypeString, s)
}

func NewEntityIDValue(id EntityID) DataValue {
	return newDataValue(ValueTypeEntityID, EntityIDValue{
		EntityType: id.Kind().String(),
		NumericID:  id.Number(),
		ID:         id.String(),
	})
}

func NewMonolingualTextValue(text, language string) DataValue {
	return newDataValue(ValueTypeMonolingualText, MonolingualTextValue{Text: text, Language: language})
}

func NewTimeValue(v TimeValue) DataValue {
	return newDataValue(ValueTypeTime, v)
}

func NewQuantityValue(v QuantityValue) DataValue {
	return newDataValue(ValueTypeQuantity, v)
}

func NewGlobeCoordinateValue(v GlobeCoordinateValue) DataValue {
	return newDataValue(ValueTypeGlobeCoordinate, v)
}

func (dv DataValue) decode(expectedType string, target any) error {
	if dv.Type != expectedType {
		return fmt.Errorf("value of type %s is not a %s", dv.Type, expectedType)
	}

	if err := json.Unmarshal(dv.Value, target); err != nil {
		return fmt.Errorf("failed to decode %s value: %w", expectedType, err)
	}

	return nil
}

func (dv DataValue) AsString() (string, error) {
	var s string
	err := dv.decode(ValueTypeString, &s)
	return s, err
}

func (dv DataValue) AsEntityID() (EntityID, error) {
	v := EntityIDValue{}
	if err := dv.decode(ValueTypeEntityID, &v); err != nil {
		return EntityID{}, err
	}

	if v.ID != "" {
		return ParseEntityID(v.ID)
	}

	kind, err := ParseKind(v.EntityType)
	if err != nil {
		return EntityID{}, err
	}

	if v.NumericID == 0 {
		return EntityID{}, fmt.Errorf("entity id value without id")
	}

	return NewEntityID(kind, v.NumericID), nil
}

func (dv DataValue) AsMonolingualText() (MonolingualTextValue, error) {
	v := MonolingualTextValue{}
	err := dv.decode(ValueTypeMonolingualText, &v)
	return v, err
}

func (dv DataValue) AsTime() (TimeValue, error) {
	v := TimeValue{}
	err := dv.decode(ValueTypeTime, &v)
	if err == nil && v.Time == "" {
		err = fmt.Errorf("time value without time")
	}
	return v, err
}

func (dv DataValue) AsQuantity() (QuantityValue, error) {
	v := QuantityValue{}
	err := dv.decode(ValueTypeQuantity, &v)
	if err == nil && v.Amount == "" {
		err = fmt.Errorf("quantity value without amount")
	}
	return v, err
}

func (dv DataValue) AsGlobeCoordinate() (GlobeCoordinateValue, error) {
	v := GlobeCoordinateValue{}
	err := dv.decode(ValueTypeGlobeCoordinate, &v)
	return v, err
}

// Compact returns the raw value with insignificant whitespace removed.
func (dv DataValue) Compact() string {
	buf := &bytes.Buffer{}
	if err := json.Compact(buf, dv.Value); err != nil {
		return string(dv.Value)
	}
	return buf.String()
}

// Hash is a stable digest of the value, used to name value nodes.
func (dv DataValue) Hash() string {
	h := sha1.New()
	h.Write([]byte(dv.Type))
	h.Write([]byte{0})
	h.Write([]byte(dv.Compact()))
	return hex.EncodeToString(h.Sum(nil))
}
