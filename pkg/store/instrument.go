package store

import (
	"context"
	"time"
)

// Metrics receives durable store operation observations.
type Metrics interface {
	// ObserveOperation records one call. err is the call's result, which
	// may be ErrNotFound for Get.
	ObserveOperation(storeType, operation string, duration time.Duration, err error)

	// RecordBytes records value bytes moved by Get or Put.
	RecordBytes(storeType, operation string, bytes int)
}

// Instrument wraps s so every operation is reported to m. It returns s
// unchanged when m is nil.
func Instrument(s Store, storeType string, m Metrics) Store {
	if s == nil || m == nil {
		return s
	}
	return &instrumented{Store: s, storeType: storeType, m: m}
}

type instrumented struct {
	Store
	storeType string
	m         Metrics
}

func (s *instrumented) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	v, err := s.Store.Get(ctx, key)
	s.m.ObserveOperation(s.storeType, "get", time.Since(start), err)
	if err == nil {
		s.m.RecordBytes(s.storeType, "get", len(v))
	}
	return v, err
}

func (s *instrumented) Put(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.Store.Put(ctx, key, value)
	s.m.ObserveOperation(s.storeType, "put", time.Since(start), err)
	if err == nil {
		s.m.RecordBytes(s.storeType, "put", len(value))
	}
	return err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, key)
	s.m.ObserveOperation(s.storeType, "delete", time.Since(start), err)
	return err
}

func (s *instrumented) Healthcheck(ctx context.Context) error {
	start := time.Now()
	err := s.Store.Healthcheck(ctx)
	s.m.ObserveOperation(s.storeType, "healthcheck", time.Since(start), err)
	return err
}
