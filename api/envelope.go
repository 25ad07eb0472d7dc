package api

import (
	"bytes"
	"encoding/json"
)

// Envelope is the one response shape of the backend. Responses that
// nest envelopes or put the payload next to success instead of under data
// are folded into it while decoding.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*e = Envelope{}
	if v, ok := fields["success"]; ok {
		if err := json.Unmarshal(v, &e.Success); err != nil {
			return err
		}
	}
	if v, ok := fields["message"]; ok {
		_ = json.Unmarshal(v, &e.Message)
	}

	data, hasData := fields["data"]
	delete(fields, "success")
	delete(fields, "message")
	delete(fields, "data")

	if !hasData && len(fields) > 0 {
		folded, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		data = folded
	}

	e.unwrap(data)
	return nil
}

// Empty reports whether the envelope carries no payload.
func (e *Envelope) Empty() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// unwrap strips envelopes nested under data. A nested envelope without
// success set fails the whole response.
func (e *Envelope) unwrap(data json.RawMessage) {
	for {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err != nil {
			e.Data = data
			return
		}

		raw, hasSuccess := inner["success"]
		next, hasData := inner["data"]
		msg, hasMessage := inner["message"]
		var ok bool
		if !hasSuccess || (!hasData && !hasMessage) || json.Unmarshal(raw, &ok) != nil {
			e.Data = data
			return
		}

		if !ok {
			e.Success = false
			e.Data = nil
			var m string
			if json.Unmarshal(msg, &m) == nil && m != "" {
				e.Message = m
			}
			return
		}
		if !hasData {
			e.Data = data
			return
		}
		data = next
	}
}

// Pick decodes data[key] into out when data is an object holding key,
// otherwise it decodes data itself. It absorbs the `data.courses` versus
// `data` inconsistency of list endpoints.
func Pick(data json.RawMessage, key string, out interface{}) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		if v, ok := obj[key]; ok {
			return json.Unmarshal(v, out)
		}
	}
	return json.Unmarshal(data, out)
}
