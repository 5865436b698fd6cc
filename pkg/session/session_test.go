package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type table struct {
	rows int
}

func TestPutGet(t *testing.T) {
	s := New[*table](time.Minute)
	id := s.Put(&table{rows: 3})
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id %q is not a uuid: %v", id, err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.rows != 3 {
		t.Errorf("rows = %d", got.rows)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d", s.Len())
	}

	s.Delete(id)
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}

func TestUnknownID(t *testing.T) {
	s := New[string](0)
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestExpiry(t *testing.T) {
	s := New[string](20 * time.Millisecond)
	id := s.Put("x")
	time.Sleep(50 * time.Millisecond)
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired value still returned, err = %v", err)
	}
}
