package keylist

import (
	"bytes"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec stores a Record as a JSON object of string arrays.
type JSONCodec struct{}

// NewJSONCodec returns the default Codec.
func NewJSONCodec() Codec {
	return JSONCodec{}
}

// Encode fails for owners or values that are not valid UTF-8, since JSON
// would silently replace the invalid bytes.
func (JSONCodec) Encode(rec Record) ([]byte, error) {
	for owner, values := range rec {
		if !utf8.ValidString(owner) {
			return nil, errors.Wrapf(ErrEncodingFailed, "owner %q is not valid UTF-8", owner)
		}
		for _, v := range values {
			if !utf8.ValidString(v) {
				return nil, errors.Wrapf(ErrEncodingFailed, "value %q of owner %q is not valid UTF-8", v, owner)
			}
		}
	}
	if rec == nil {
		rec = Record{}
	}
	blob, err := json.Marshal(map[string][]string(rec))
	if err != nil {
		return nil, errors.Wrap(ErrEncodingFailed, err.Error())
	}
	return blob, nil
}

// Decode fails for anything but an object of string arrays. Null members,
// empty owners and invalid UTF-8 are rejected since no Record can hold them.
func (JSONCodec) Decode(blob []byte) (Record, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.Wrap(ErrDecodingFailed, "blob is not a JSON object")
	}
	var m map[string][]*string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, errors.Wrap(ErrDecodingFailed, err.Error())
	}
	rec := make(Record, len(m))
	for owner, values := range m {
		if owner == "" {
			return nil, errors.Wrap(ErrDecodingFailed, "owner cannot be empty")
		}
		if !utf8.ValidString(owner) {
			return nil, errors.Wrapf(ErrDecodingFailed, "owner %q is not valid UTF-8", owner)
		}
		if values == nil {
			return nil, errors.Wrapf(ErrDecodingFailed, "owner %q has a null list", owner)
		}
		list := make([]string, 0, len(values))
		for _, v := range values {
			if v == nil {
				return nil, errors.Wrapf(ErrDecodingFailed, "owner %q has a null value", owner)
			}
			if !utf8.ValidString(*v) {
				return nil, errors.Wrapf(ErrDecodingFailed, "value %q of owner %q is not valid UTF-8", *v, owner)
			}
			list = append(list, *v)
		}
		rec[owner] = list
	}
	return rec, nil
}
