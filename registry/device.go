package registry

import (
	"math"
	"time"
)

// Device is a registry record as returned by getDevice.
type Device struct {
	UUID  string     `cbor:"uuid" json:"uuid"`
	Type  DeviceType `cbor:"type" json:"type"`
	Extra Extra      `cbor:"extra" json:"extra"`
}

// DeviceType carries the category tag of a record.
type DeviceType struct {
	ID string `cbor:"id" json:"id"`
}

// Extra holds the user-specific fields of a record. Pointer fields are nil
// when the field is absent from the record.
type Extra struct {
	PhoneNumber string     `cbor:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Password    *string    `cbor:"password,omitempty" json:"password,omitempty"`
	AuthToken   *AuthToken `cbor:"authToken,omitempty" json:"authToken,omitempty"`
}

// AuthToken is the session marker stored on a user record. Timestamp is in
// Unix milliseconds.
type AuthToken struct {
	Token     string `cbor:"token" json:"token"`
	Timestamp int64  `cbor:"timestamp" json:"timestamp"`
}

// IssuedAt returns Timestamp as a time.Time.
func (a AuthToken) IssuedAt() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// DeviceFromDocument converts one decoded record into a Device. Fields of
// an unexpected type are treated as absent: a non-string password never
// matches, and an authToken without a string token and an integral
// timestamp is no token at all.
func DeviceFromDocument(doc map[string]any) Device {
	var d Device
	d.UUID, _ = doc["uuid"].(string)
	if typ, ok := doc["type"].(map[string]any); ok {
		d.Type.ID, _ = typ["id"].(string)
	}
	extra, ok := doc["extra"].(map[string]any)
	if !ok {
		return d
	}
	d.Extra.PhoneNumber, _ = extra["phoneNumber"].(string)
	if pw, ok := extra["password"].(string); ok {
		d.Extra.Password = &pw
	}
	if at, ok := extra["authToken"].(map[string]any); ok {
		token, okToken := at["token"].(string)
		ts, okTS := integral(at["timestamp"])
		if okToken && okTS {
			d.Extra.AuthToken = &AuthToken{Token: token, Timestamp: ts}
		}
	}
	return d
}

func integral(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Dotted field paths understood by the registry.
const (
	FieldUUID               = "uuid"
	FieldTypeID             = "type.id"
	FieldPhoneNumber        = "extra.phoneNumber"
	FieldAuthToken          = "extra.authToken"
	FieldAuthTokenTimestamp = "extra.authToken.timestamp"
)

// Registry commands.
const (
	CmdGetDevice     = "getDevice"
	CodeGetDevice    = "0003"
	CmdDeviceUpdate  = "deviceUpdate"
	CodeDeviceUpdate = "0004"
)
