package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cast"
)

// Metadata keys as exposed to callers.
const (
	KeyGatewayStatus     = "gateway_status"
	KeyGatewaySuccess    = "gateway_success"
	KeyInstrumentType    = "payment_instrument_type"
	KeyErrorMessage      = "gateway_error_message"
	KeyErrorCode         = "gateway_error_code"
	KeyFirstReferenceID  = "first_reference_id"
	KeySecondReferenceID = "second_reference_id"
	KeyFromRedirect      = "fromRedirect"
	KeyRedirectCompleted = "redirectCompleted"
	KeyOverriddenStatus  = "overriddenTransactionStatus"
	KeyMessage           = "message"
)

// Metadata is the mutable part of a ledger row. Fields the bridge branches on
// are typed; everything else lives in Extra.
type Metadata struct {
	GatewayStatus     string
	GatewaySuccess    *bool
	InstrumentType    string
	ErrorMessage      string
	ErrorCode         string
	FirstReferenceID  string
	SecondReferenceID string
	FromRedirect      bool
	RedirectCompleted bool
	OverriddenStatus  string
	Message           string
	Extra             map[string]any
}

// MetadataFromMap builds Metadata from a flat key/value map.
func MetadataFromMap(values map[string]any) Metadata {
	var md Metadata
	for key, value := range values {
		md.set(key, value)
	}
	return md
}

func (m *Metadata) set(key string, value any) {
	switch key {
	case KeyGatewayStatus:
		m.GatewayStatus = cast.ToString(value)
	case KeyGatewaySuccess:
		if value == nil {
			m.GatewaySuccess = nil
			return
		}
		b := cast.ToBool(value)
		m.GatewaySuccess = &b
	case KeyInstrumentType:
		m.InstrumentType = cast.ToString(value)
	case KeyErrorMessage:
		m.ErrorMessage = cast.ToString(value)
	case KeyErrorCode:
		m.ErrorCode = cast.ToString(value)
	case KeyFirstReferenceID:
		m.FirstReferenceID = cast.ToString(value)
	case KeySecondReferenceID:
		m.SecondReferenceID = cast.ToString(value)
	case KeyFromRedirect:
		m.FromRedirect = cast.ToBool(value)
	case KeyRedirectCompleted:
		m.RedirectCompleted = cast.ToBool(value)
	case KeyOverriddenStatus:
		m.OverriddenStatus = strings.ToUpper(cast.ToString(value))
	case KeyMessage:
		m.Message = cast.ToString(value)
	default:
		if m.Extra == nil {
			m.Extra = map[string]any{}
		}
		m.Extra[key] = value
	}
}

// ToMap flattens the metadata. Empty typed fields are omitted.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	putString := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	putString(KeyGatewayStatus, m.GatewayStatus)
	putString(KeyInstrumentType, m.InstrumentType)
	putString(KeyErrorMessage, m.ErrorMessage)
	putString(KeyErrorCode, m.ErrorCode)
	putString(KeyFirstReferenceID, m.FirstReferenceID)
	putString(KeySecondReferenceID, m.SecondReferenceID)
	putString(KeyOverriddenStatus, m.OverriddenStatus)
	putString(KeyMessage, m.Message)
	if m.GatewaySuccess != nil {
		out[KeyGatewaySuccess] = *m.GatewaySuccess
	}
	if m.FromRedirect {
		out[KeyFromRedirect] = true
	}
	if m.RedirectCompleted {
		out[KeyRedirectCompleted] = true
	}
	return out
}

// Merge returns m with every key of patch applied on top. Keys absent from
// patch are preserved.
func (m Metadata) Merge(patch map[string]any) Metadata {
	out := m
	out.Extra = make(map[string]any, len(m.Extra)+len(patch))
	for k, v := range m.Extra {
		out.Extra[k] = v
	}
	for k, v := range patch {
		out.set(k, v)
	}
	if len(out.Extra) == 0 {
		out.Extra = nil
	}
	return out
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*m = MetadataFromMap(values)
	return nil
}

func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m.ToMap())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		if len(v) == 0 {
			*m = Metadata{}
			return nil
		}
		return m.UnmarshalJSON(v)
	case string:
		if v == "" {
			*m = Metadata{}
			return nil
		}
		return m.UnmarshalJSON([]byte(v))
	}
	return errors.New("unsupported metadata column type")
}
