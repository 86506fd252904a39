package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// StateValue carries a lifecycle state exactly as the server sent it. List
// endpoints send the enum ordinal, detail endpoints the canonical name, and
// both use the same "state" member.
type StateValue struct {
	Name      string
	Ordinal   int
	IsOrdinal bool
}

func StateName(name string) StateValue {
	return StateValue{Name: name}
}

func StateOrdinal(ordinal int) StateValue {
	return StateValue{Ordinal: ordinal, IsOrdinal: true}
}

func (v StateValue) MarshalJSON() ([]byte, error) {
	if v.IsOrdinal {
		return json.Marshal(v.Ordinal)
	}
	return json.Marshal(v.Name)
}

func (v *StateValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case nil:
		*v = StateValue{}
	case string:
		*v = StateValue{Name: x}
	case float64:
		ordinal, err := cast.ToIntE(x)
		if err != nil {
			return err
		}
		*v = StateValue{Ordinal: ordinal, IsOrdinal: true}
	default:
		return fmt.Errorf("unsupported state value %s", string(data))
	}
	return nil
}

// FlexString accepts a JSON string, number or boolean and keeps its textual
// form. Numbers keep their original spelling ("1.8" stays "1.8").
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case nil:
		*s = ""
	case json.Number:
		*s = FlexString(x.String())
	default:
		str, err := cast.ToStringE(x)
		if err != nil {
			return fmt.Errorf("unsupported scalar value %s", string(data))
		}
		*s = FlexString(str)
	}
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// FlexInt accepts a JSON number or a base-10 numeric string. Anything that
// does not parse decodes to zero.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			*i = 0
			return nil
		}
		*i = FlexInt(int(n))
	case float64, bool:
		n, err := cast.ToIntE(x)
		if err != nil {
			*i = 0
			return nil
		}
		*i = FlexInt(n)
	default:
		*i = 0
	}
	return nil
}

func (i FlexInt) Int() int {
	return int(i)
}
