package domain

import (
	"encoding/json"
	"testing"
)

func TestParseAmountRange(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"0", false},
		{"-1", false},
		{"170141183460469231731687303715884105727", false},
		{"-170141183460469231731687303715884105728", false},
		{"170141183460469231731687303715884105728", true},
		{"-170141183460469231731687303715884105729", true},
		{"12abc", true},
		{"", true},
	}
	for _, tc := range cases {
		a, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseAmount(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if a.String() != tc.in {
			t.Fatalf("ParseAmount(%q) round trip got %s", tc.in, a.String())
		}
	}
}

func TestNewAmountMatchesParse(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -9000, 1 << 62, -(1 << 62)} {
		a := NewAmount(v)
		b, err := ParseAmount(a.String())
		if err != nil {
			t.Fatalf("parse %s: %v", a, err)
		}
		if a != b {
			t.Fatalf("NewAmount(%d)=%+v, parsed %+v", v, a, b)
		}
		if a.Big().Int64() != v {
			t.Fatalf("NewAmount(%d).Big()=%s", v, a.Big())
		}
	}
}

func TestClaimJSONEncoding(t *testing.T) {
	amt, _ := ParseAmount("-170141183460469231731687303715884105728")
	c := Claim{ID: 9, Creator: "GC", Recipient: "GR", Amount: amt, Token: "CT", Status: StatusCancelled, CreatedAt: 1, ClaimWindowStart: 2, ClaimWindowEnd: 3}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if m["status"] != "cancelled" {
		t.Fatalf("status encoded as %v", m["status"])
	}
	if m["amount"] != "-170141183460469231731687303715884105728" {
		t.Fatalf("amount encoded as %v", m["amount"])
	}
	var back Claim
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, c)
	}
}

func TestClaimStatusDecoding(t *testing.T) {
	var c Claim
	if err := json.Unmarshal([]byte(`{"id":1,"amount":5,"status":2}`), &c); err != nil {
		t.Fatalf("numeric status: %v", err)
	}
	if c.Status != StatusCancelled || c.Amount != NewAmount(5) {
		t.Fatalf("unexpected decode %+v", c)
	}
	if err := json.Unmarshal([]byte(`{"status":"expired"}`), &c); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if StatusPending.Terminal() || !StatusClaimed.Terminal() || !StatusCancelled.Terminal() {
		t.Fatalf("terminal classification wrong")
	}
}

func TestGetClaimResult(t *testing.T) {
	if _, ok := NotFound().Claim(); ok {
		t.Fatalf("NotFound reported a claim")
	}
	c, ok := Found(Claim{ID: 3}).Claim()
	if !ok || c.ID != 3 {
		t.Fatalf("Found lost its claim")
	}
	if ByCreator.Owner(Claim{Creator: "a", Recipient: "b"}) != "a" {
		t.Fatalf("creator index owner")
	}
}
