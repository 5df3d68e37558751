package render

import (
	"encoding/json"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// JSON writes rep as indented JSON.
func JSON(w io.Writer, rep Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}

// Msgpack writes rep in MessagePack encoding.
func Msgpack(w io.Writer, rep Report) error {
	return msgpack.NewEncoder(w).Encode(&rep)
}

// DecodeMsgpack reads a Report written by Msgpack.
func DecodeMsgpack(r io.Reader) (Report, error) {
	var rep Report
	if err := msgpack.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, err
	}
	return rep, nil
}
