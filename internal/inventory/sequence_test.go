package inventory

import "testing"

func TestNextDispatchNumber(t *testing.T) {
	cases := []struct {
		name       string
		year       int
		lastNumber string
		want       string
	}{
		{"first of the year", 2026, "", "DISP-2026-0001"},
		{"increments last", 2026, "DISP-2026-0007", "DISP-2026-0008"},
		{"rolls to new year independent of last year's count", 2027, "DISP-2026-9999", "DISP-2027-0001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextDispatchNumber(tc.year, tc.lastNumber); got != tc.want {
				t.Errorf("NextDispatchNumber(%d, %q) = %q, want %q", tc.year, tc.lastNumber, got, tc.want)
			}
		})
	}
}

func TestNextReturnAndScrapNumber(t *testing.T) {
	if got := NextReturnNumber(2026, ""); got != "RET-2026-001" {
		t.Errorf("NextReturnNumber = %q, want RET-2026-001", got)
	}
	if got := NextReturnNumber(2026, "RET-2026-042"); got != "RET-2026-043" {
		t.Errorf("NextReturnNumber = %q, want RET-2026-043", got)
	}
	if got := NextScrapNumber(2026, ""); got != "SCR-2026-001" {
		t.Errorf("NextScrapNumber = %q, want SCR-2026-001", got)
	}
	if got := NextScrapNumber(2026, "SCR-2026-005"); got != "SCR-2026-006" {
		t.Errorf("NextScrapNumber = %q, want SCR-2026-006", got)
	}
}

func TestBatchCode(t *testing.T) {
	params := map[string]string{"pressure": "PN16", "diameter": "110mm"}
	got := BatchCode("HDPE Pipe", "Finolex", params, 2026, 7)
	want := "HDPE_PIPE-diameter=110,pressure=PN16-FINOLEX-2026-0007"
	if got != want {
		t.Errorf("BatchCode() = %q, want %q", got, want)
	}
}

func TestReturnBatchCode(t *testing.T) {
	if got := ReturnBatchCode("RET-2026-001", 3); got != "RET-2026-001-03" {
		t.Errorf("ReturnBatchCode() = %q, want RET-2026-001-03", got)
	}
}
