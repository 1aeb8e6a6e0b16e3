package dict

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Param is a single tagged, ordered bind value (§3 "Parameter"). Value's
// concrete type is string, uint64, int64, float64, or []byte depending on
// Type; order in a Param slice must match '?' placeholder emission order.
type Param struct {
	Type  Type
	Value any
}

// Encode converts a path-text value into a typed SQL parameter. suffix is
// either "" or a LIKE pattern ("/%", "/%/%") used by the WHERE builder's
// recursive predicates (§4.3). For HEXBLOB the suffix is appended *after*
// hex-decoding, so it rides along as raw bytes, not hex text; for every
// other type a non-empty suffix is only valid for STRING.
func Encode(t Type, text string, suffix string) (Param, error) {
	switch t {
	case TypeString:
		return Param{Type: t, Value: text + suffix}, nil
	case TypeInt:
		if suffix != "" {
			return Param{}, InvalidValueError("value", t, text)
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Param{}, InvalidValueError("value", t, text)
		}
		return Param{Type: t, Value: v}, nil
	case TypeUint:
		if suffix != "" {
			return Param{}, InvalidValueError("value", t, text)
		}
		if strings.HasPrefix(text, "-") {
			return Param{}, InvalidValueError("value", t, text)
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Param{}, InvalidValueError("value", t, text)
		}
		return Param{Type: t, Value: uint64(v)}, nil
	case TypeDouble:
		if suffix != "" {
			return Param{}, InvalidValueError("value", t, text)
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Param{}, InvalidValueError("value", t, text)
		}
		return Param{Type: t, Value: v}, nil
	case TypeUUID:
		if suffix != "" {
			return Param{}, InvalidValueError("value", t, text)
		}
		id, err := uuid.Parse(text)
		if err != nil {
			return Param{}, InvalidValueError("value", t, text)
		}
		b := id[:]
		return Param{Type: t, Value: append([]byte(nil), b...)}, nil
	case TypeHexblob:
		decoded, err := hex.DecodeString(text)
		if err != nil {
			return Param{}, InvalidValueError("value", t, text)
		}
		payload := make([]byte, 0, len(decoded)+len(suffix))
		payload = append(payload, decoded...)
		payload = append(payload, []byte(suffix)...)
		return Param{Type: t, Value: payload}, nil
	default:
		return Param{}, InvalidValueError("value", t, text)
	}
}

// Decode converts a raw SQL result column back into path-text. raw is nil
// for SQL NULL, otherwise []byte (text-ish types) or []byte (binary types
// — UUID and HEXBLOB are always read as raw bytes off the wire, per the
// driver contract's result_get_field_value_binary).
func Decode(t Type, raw []byte, isNull bool) (string, error) {
	switch t {
	case TypeString, TypeInt, TypeUint, TypeDouble:
		if isNull {
			return "", nil
		}
		return string(raw), nil
	case TypeUUID:
		if isNull {
			return "", nil
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			// Some backends may hand back the canonical dashed string
			// instead of raw bytes; fall back to parsing it as text.
			parsed, perr := uuid.Parse(string(raw))
			if perr != nil {
				return "", wrapError(KindInvalidValue, err, "decode UUID")
			}
			id = parsed
		}
		return id.String(), nil
	case TypeHexblob:
		if isNull {
			return "", nil
		}
		return hex.EncodeToString(raw), nil
	default:
		return "", newError(KindInvalidValue, "unknown type %v", t)
	}
}
