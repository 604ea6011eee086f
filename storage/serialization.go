// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/pulse/core"
	"github.com/vmihailenco/msgpack/v5"
)

// MarshalID serializes an ID to 8 big-endian bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) < 8 {
		return 0, ErrTruncatedData
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

func marshal[T any](v *T) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalPostRecord serializes a PostRecord to bytes.
func MarshalPostRecord(record *core.PostRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalPostRecord deserializes a PostRecord from bytes.
func UnmarshalPostRecord(data []byte) (*core.PostRecord, error) {
	return unmarshal[core.PostRecord](data)
}

// MarshalIndexedRecord serializes an IndexedRecord to bytes.
func MarshalIndexedRecord(record *core.IndexedRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalIndexedRecord deserializes an IndexedRecord from bytes.
func UnmarshalIndexedRecord(data []byte) (*core.IndexedRecord, error) {
	return unmarshal[core.IndexedRecord](data)
}

// MarshalInsight serializes an Insight to bytes.
func MarshalInsight(insight *core.Insight) ([]byte, error) {
	return marshal(insight)
}

// UnmarshalInsight deserializes an Insight from bytes.
func UnmarshalInsight(data []byte) (*core.Insight, error) {
	return unmarshal[core.Insight](data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return marshal(checkpoint)
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal[core.Checkpoint](data)
}
