/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import jsoniter "github.com/json-iterator/go"

// Codec marshals and unmarshals frame heads and body chunks to bytes. Real
// wire codecs are an external collaborator per spec §1; this interface and
// its jsoniter-backed default exist only so the reference PipeTransport below
// exercises an actual encode/decode boundary instead of passing Go values
// through a channel untouched, the way a real transport would.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONCodec round-trips heads and chunks through jsoniter, decoding into
// map[string]any/[]any/primitives since the reference transport has no
// concrete schema of its own — mirrors the teacher's stats package, which
// uses the same jsoniter alias for schema-light snapshot (de)serialization.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return fastJSON.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := fastJSON.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
