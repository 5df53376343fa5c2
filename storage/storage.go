// Package storage loads reference tables and persists uploaded images on the
// local filesystem or in S3.
package storage

import (
	"context"
	"errors"
)

// State is a read-only blob, such as a reference table.
type State interface {
	Load(ctx context.Context) ([]byte, error)
}

// ObjectWriter stores a blob under key and returns a reference to it.
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// TestState is a simple in-memory implementation for testing
type TestState struct {
	data []byte
	err  error
}

func NewTestState(data []byte) *TestState {
	return &TestState{data: data}
}

func NewTestStateWithError() *TestState {
	return &TestState{err: errors.New("not found")}
}

func (t *TestState) Load(ctx context.Context) ([]byte, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.data, nil
}

// TestObjects records every Put in memory.
type TestObjects struct {
	Objects map[string][]byte
	err     error
}

func NewTestObjects() *TestObjects {
	return &TestObjects{Objects: map[string][]byte{}}
}

func NewTestObjectsWithError() *TestObjects {
	return &TestObjects{Objects: map[string][]byte{}, err: errors.New("write refused")}
}

func (t *TestObjects) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	t.Objects[key] = data
	return "mem://" + key, nil
}
