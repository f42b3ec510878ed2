package jobs

import "testing"

func TestValidateTargetPayloadMainRequiresSystemEventText(t *testing.T) {
	if err := ValidateTargetPayload(TargetMain, Payload{Kind: PayloadSystemEvent, Text: "reminder due"}); err != nil {
		t.Fatalf("expected valid MAIN/system_event, got %v", err)
	}
	if err := ValidateTargetPayload(TargetMain, Payload{Kind: PayloadSystemEvent}); err == nil {
		t.Fatal("expected error for empty text")
	}
	if err := ValidateTargetPayload(TargetMain, Payload{Kind: PayloadAgentTurn, Message: "hi"}); err == nil {
		t.Fatal("expected error for wrong payload kind")
	}
}

func TestValidateTargetPayloadRejectsDeliveryOnMain(t *testing.T) {
	err := ValidateTargetPayload(TargetMain, Payload{
		Kind: PayloadSystemEvent, Text: "x", Delivery: map[string]any{"push": true},
	})
	if err == nil {
		t.Fatal("expected error: delivery only allowed for ISOLATED")
	}
}

func TestValidateTargetPayloadIsolatedRequiresAgentTurnMessage(t *testing.T) {
	if err := ValidateTargetPayload(TargetIsolated, Payload{Kind: PayloadAgentTurn, Message: "check the oven"}); err != nil {
		t.Fatalf("expected valid ISOLATED/agent_turn, got %v", err)
	}
	if err := ValidateTargetPayload(TargetIsolated, Payload{Kind: PayloadAgentTurn}); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestValidateEveryMSRejectsSubMinute(t *testing.T) {
	if err := ValidateEveryMS(59_999); err == nil {
		t.Fatal("expected rejection below 60000ms")
	}
	if err := ValidateEveryMS(60_000); err != nil {
		t.Fatalf("expected 60000ms to be accepted, got %v", err)
	}
}

func TestValidateAtTimezoneRequiresExplicitOffset(t *testing.T) {
	cases := []struct {
		at    string
		valid bool
	}{
		{"2026-08-01T09:00:00Z", true},
		{"2026-08-01T09:00:00+02:00", true},
		{"2026-08-01T09:00:00", false},
		{"", false},
	}
	for _, c := range cases {
		err := ValidateAtTimezone(c.at)
		if c.valid && err != nil {
			t.Errorf("ValidateAtTimezone(%q) = %v, want valid", c.at, err)
		}
		if !c.valid && err == nil {
			t.Errorf("ValidateAtTimezone(%q) = nil, want error", c.at)
		}
	}
}

func TestParseAtInstantRejectsImplicitTimezone(t *testing.T) {
	if _, err := ParseAtInstant("2026-08-01T09:00:00"); err == nil {
		t.Fatal("expected rejection of implicit-offset timestamp")
	}
	parsed, err := ParseAtInstant("2026-08-01T09:00:00Z")
	if err != nil {
		t.Fatalf("ParseAtInstant() error = %v", err)
	}
	if parsed.IsZero() {
		t.Fatal("expected a non-zero parsed time")
	}
}

func TestValidateCalendarExprRejectsEveryMinuteUnlessAllowed(t *testing.T) {
	if err := ValidateCalendarExpr("* * * * *", false, nil); err == nil {
		t.Fatal("expected rejection of every-minute expr")
	}
	if err := ValidateCalendarExpr("* * * * *", true, nil); err != nil {
		t.Fatalf("expected wildcard allow to accept every-minute, got %v", err)
	}
	if err := ValidateCalendarExpr("* * * * *", false, []string{"* * * * *"}); err != nil {
		t.Fatalf("expected allowlisted expr to be accepted, got %v", err)
	}
	if err := ValidateCalendarExpr("0 9 * * *", false, nil); err != nil {
		t.Fatalf("expected daily 9am expr to be accepted, got %v", err)
	}
}

func TestValidateCalendarExprRejectsWrongFieldCount(t *testing.T) {
	if err := ValidateCalendarExpr("0 9 * *", false, nil); err == nil {
		t.Fatal("expected rejection of 4-field expr")
	}
}

func TestValidateDailyCapRejectsAtLimit(t *testing.T) {
	if err := ValidateDailyCap(4, 5); err != nil {
		t.Fatalf("expected count below limit to pass, got %v", err)
	}
	if err := ValidateDailyCap(5, 5); err == nil {
		t.Fatal("expected count at limit to be rejected")
	}
}
