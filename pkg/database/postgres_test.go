package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestErrorLabel(t *testing.T) {
	tests := []struct {
		name string
		op   string
		err  error
		want string
	}{
		{name: "unique violation", op: "exec", err: &pq.Error{Code: "23505"}, want: "exec_unique_violation"},
		{name: "wrapped undefined table", op: "select", err: fmt.Errorf("list: %w", &pq.Error{Code: "42P01"}), want: "select_undefined_table"},
		{name: "deadline", op: "get", err: context.DeadlineExceeded, want: "get_canceled"},
		{name: "other", op: "transaction_begin", err: errors.New("bad connection"), want: "transaction_begin_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorLabel(tt.op, tt.err); got != tt.want {
				t.Errorf("errorLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 5432, User: "postgres", Password: "pw", Database: "energy", SSLMode: "disable"}
	want := "host=localhost port=5432 user=postgres password=pw dbname=energy sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
