package httpapi

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestParseUUID(t *testing.T) {
	if _, err := parseUUID(""); err == nil {
		t.Error("parseUUID(\"\") should error")
	}
	if _, err := parseUUID("not-a-uuid"); err == nil {
		t.Error("parseUUID(malformed) should error")
	}
	id := uuid.New()
	got, err := parseUUID(id.String())
	if err != nil {
		t.Fatalf("parseUUID() error = %v", err)
	}
	if got != id {
		t.Errorf("parseUUID() = %v, want %v", got, id)
	}
}

func TestParseNullUUID(t *testing.T) {
	got, err := parseNullUUID("")
	if err != nil {
		t.Fatalf("parseNullUUID(\"\") error = %v", err)
	}
	if got.Valid {
		t.Error("parseNullUUID(\"\") should be invalid")
	}

	id := uuid.New()
	got, err = parseNullUUID(id.String())
	if err != nil {
		t.Fatalf("parseNullUUID() error = %v", err)
	}
	if !got.Valid || got.UUID != id {
		t.Errorf("parseNullUUID() = %+v, want valid %v", got, id)
	}
}

func TestParseUUIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got, err := parseUUIDList([]string{a.String(), b.String()})
	if err != nil {
		t.Fatalf("parseUUIDList() error = %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("parseUUIDList() = %v", got)
	}

	if _, err := parseUUIDList([]string{"bad"}); err == nil {
		t.Error("parseUUIDList with a malformed entry should error")
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := parseDecimal("")
	if err != nil || !got.Equal(decimal.Zero) {
		t.Errorf("parseDecimal(\"\") = %v, %v, want 0, nil", got, err)
	}

	got, err = parseDecimal("12.3400")
	if err != nil {
		t.Fatalf("parseDecimal() error = %v", err)
	}
	want := decimal.RequireFromString("12.34")
	if !got.Equal(want) {
		t.Errorf("parseDecimal() = %v, want %v", got, want)
	}

	if _, err := parseDecimal("not-a-number"); err == nil {
		t.Error("parseDecimal(garbage) should error")
	}
}

func TestParseNullDecimal(t *testing.T) {
	got, err := parseNullDecimal("")
	if err != nil || got.Valid {
		t.Errorf("parseNullDecimal(\"\") = %+v, %v, want invalid, nil", got, err)
	}

	got, err = parseNullDecimal("6.5")
	if err != nil || !got.Valid || !got.Decimal.Equal(decimal.RequireFromString("6.5")) {
		t.Errorf("parseNullDecimal(\"6.5\") = %+v, %v", got, err)
	}
}

func TestParseNullTime(t *testing.T) {
	got, err := parseNullTime("")
	if err != nil || got.Valid {
		t.Errorf("parseNullTime(\"\") = %+v, %v, want invalid, nil", got, err)
	}

	if _, err := parseNullTime("not-a-date"); err == nil {
		t.Error("parseNullTime(garbage) should error")
	}

	ref := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	got, err = parseNullTime(ref.Format(time.RFC3339))
	if err != nil || !got.Valid || !got.Time.Equal(ref) {
		t.Errorf("parseNullTime() = %+v, %v, want %v", got, err, ref)
	}
}

func TestIdOrEmpty(t *testing.T) {
	if idOrEmpty(uuid.Nil) != "" {
		t.Error("idOrEmpty(Nil) should be empty")
	}
	id := uuid.New()
	if idOrEmpty(id) != id.String() {
		t.Error("idOrEmpty(id) should round-trip")
	}
}

func TestNullUUIDOrEmpty(t *testing.T) {
	if nullUUIDOrEmpty(uuid.NullUUID{}) != "" {
		t.Error("nullUUIDOrEmpty(invalid) should be empty")
	}
	id := uuid.New()
	n := uuid.NullUUID{UUID: id, Valid: true}
	if nullUUIDOrEmpty(n) != id.String() {
		t.Error("nullUUIDOrEmpty(valid) should round-trip")
	}
}
