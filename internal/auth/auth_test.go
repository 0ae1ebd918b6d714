package auth

import (
	"errors"
	"testing"

	"github.com/chartad/charta/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{name: "standard header", header: "Bearer abc", token: "abc", ok: true},
		{name: "case insensitive scheme", header: "bearer abc", token: "abc", ok: true},
		{name: "padded token", header: "Bearer  abc ", token: "abc", ok: true},
		{name: "missing token", header: "Bearer ", ok: false},
		{name: "wrong scheme", header: "Basic abc", ok: false},
		{name: "empty header", header: "", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, ok := BearerToken(tc.header)
			if ok != tc.ok || token != tc.token {
				t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
			}
		})
	}
}

func TestAllowAll(t *testing.T) {
	testlog.Start(t)
	if err := (AllowAll{}).Validate(""); err != nil {
		t.Fatalf("AllowAll must accept empty token, got %v", err)
	}
	if err := (AllowAll{}).Validate("anything"); err != nil {
		t.Fatalf("AllowAll must accept any token, got %v", err)
	}
}
