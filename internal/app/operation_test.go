package app

import (
	"errors"
	"testing"
	"time"

	"educahub/internal/testutil"
)

func TestNewOperation(t *testing.T) {
	clock := testutil.FixedClock()
	op := NewOperation("Login", testutil.NewStubIDGenerator(), clock)

	if op.ID != "req-1" {
		t.Errorf("ID = %q, want %q", op.ID, "req-1")
	}
	if op.Name != "Login" {
		t.Errorf("Name = %q, want %q", op.Name, "Login")
	}
	if op.Status != "success" || op.Failed() {
		t.Errorf("Status = %q, want success", op.Status)
	}
	if !op.StartedAt.Equal(clock.Now()) {
		t.Errorf("StartedAt = %v, want %v", op.StartedAt, clock.Now())
	}
}

func TestOperation_Record(t *testing.T) {
	tests := []struct {
		name string
		errs []error
		want string
	}{
		{name: "no steps", errs: nil, want: "success"},
		{name: "only successes", errs: []error{nil, nil}, want: "success"},
		{name: "failure sticks", errs: []error{errors.New("boom"), nil}, want: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("Feed", testutil.NewStubIDGenerator(), testutil.NewStubClock(time.Unix(0, 0)))
			for _, err := range tt.errs {
				if got := op.Record(err); got != err {
					t.Errorf("Record(%v) = %v, want it returned unchanged", err, got)
				}
			}
			if op.Status != tt.want {
				t.Errorf("Status = %q, want %q", op.Status, tt.want)
			}
		})
	}
}
