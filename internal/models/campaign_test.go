package models

import "testing"

func TestCampaignStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to CampaignStatus
		allowed  bool
	}{
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusDraft, CampaignStatusEnded, false},
		{CampaignStatusDraft, CampaignStatusDrawn, false},
		{CampaignStatusActive, CampaignStatusEnded, true},
		{CampaignStatusActive, CampaignStatusDrawn, true},
		{CampaignStatusActive, CampaignStatusDraft, false},
		{CampaignStatusEnded, CampaignStatusDrawn, true},
		{CampaignStatusEnded, CampaignStatusActive, false},
		{CampaignStatusDrawn, CampaignStatusActive, false},
		{CampaignStatusDrawn, CampaignStatusEnded, false},
		{CampaignStatusDrawn, CampaignStatusDraft, false},
		{CampaignStatusActive, CampaignStatusActive, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}

	if !CampaignStatusDrawn.IsTerminal() {
		t.Error("drawn must be terminal")
	}
	if CampaignStatusEnded.IsTerminal() {
		t.Error("ended still allows a draw")
	}
	if CampaignStatusDraft.CanDraw() {
		t.Error("draft campaigns cannot be drawn")
	}
}

func TestParseCampaignStatus(t *testing.T) {
	if s, ok := ParseCampaignStatus("completed"); !ok || s != CampaignStatusDrawn {
		t.Errorf("completed should alias drawn, got %q %v", s, ok)
	}
	if s, ok := ParseCampaignStatus(" Active "); !ok || s != CampaignStatusActive {
		t.Errorf("expected active, got %q %v", s, ok)
	}
	if _, ok := ParseCampaignStatus("archived"); ok {
		t.Error("unknown status accepted")
	}
}

func TestCampaignIsFull(t *testing.T) {
	c := Campaign{MaxParticipants: 0, ParticipantCount: 1000}
	if c.IsFull() {
		t.Error("unlimited campaign reported full")
	}
	c = Campaign{MaxParticipants: 2, ParticipantCount: 2}
	if !c.IsFull() {
		t.Error("capped campaign not reported full")
	}
}
