package policy

import (
	"math"
	"testing"

	"github.com/opensource-finance/caduceus/internal/domain"
)

func TestDecideGuards(t *testing.T) {
	p := NewPolicy(nil)

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "TwoFlagsDenyBeforeScore",
			in:   Input{Score: 95, RequestedCost: 1000, AssetValue: 2000, FraudFlagCount: 2},
			want: domain.ReasonMultipleFraudIndicators,
		},
		{
			name: "ThreeFlagsDeny",
			in:   Input{Score: 95, RequestedCost: 1000, AssetValue: 2000, FraudFlagCount: 3},
			want: domain.ReasonMultipleFraudIndicators,
		},
		{
			name: "ScoreBelowFloor",
			in:   Input{Score: 29, RequestedCost: 1000, AssetValue: 2000},
			want: domain.ReasonScoreTooLow,
		},
		{
			name: "AssetBelowCoverageFloor",
			in:   Input{Score: 75, RequestedCost: 1000, AssetValue: 299.99},
			want: domain.ReasonInsufficientAssetCoverage,
		},
		{
			name: "FraudDenialWinsOverLowScore",
			in:   Input{Score: 10, RequestedCost: 1000, AssetValue: 0, FraudFlagCount: 2},
			want: domain.ReasonMultipleFraudIndicators,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.Decide(tt.in)
			if out.Approved {
				t.Fatal("expected denial")
			}
			if out.Reason != tt.want {
				t.Errorf("reason = %q, want %q", out.Reason, tt.want)
			}
			if out.Amount != 0 {
				t.Errorf("denial must carry zero amount, got %v", out.Amount)
			}
		})
	}
}

func TestDecideBands(t *testing.T) {
	p := NewPolicy(nil)

	// Asset is generous so the medication ratio ceiling binds.
	tests := []struct {
		name  string
		score int
		want  float64
	}{
		{"TopBand", 80, 1000},
		{"SecondBand", 79, 900},
		{"SecondBandLowEdge", 65, 900},
		{"ThirdBand", 64, 700},
		{"ThirdBandLowEdge", 50, 700},
		{"FourthBand", 49, 500},
		{"FourthBandLowEdge", 40, 500},
		{"FloorBand", 39, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.Decide(Input{Score: tt.score, RequestedCost: 1000, AssetValue: 10000})
			if !out.Approved {
				t.Fatalf("expected approval, got denial: %s", out.Reason)
			}
			if out.Amount != tt.want {
				t.Errorf("amount = %v, want %v", out.Amount, tt.want)
			}
			if out.Reason != domain.ReasonApproved {
				t.Errorf("reason = %q, want %q", out.Reason, domain.ReasonApproved)
			}
		})
	}
}

func TestDecideSingleFlagPenalty(t *testing.T) {
	p := NewPolicy(nil)

	// Score 80 band is 0.9/1.0; one flag shrinks both to 0.72/0.8.
	out := p.Decide(Input{Score: 80, RequestedCost: 1000, AssetValue: 10000, FraudFlagCount: 1})
	if !out.Approved {
		t.Fatalf("expected approval, got: %s", out.Reason)
	}
	if out.Amount != 800 {
		t.Errorf("amount = %v, want 800 after single-flag penalty", out.Amount)
	}

	// With a tight asset the discounted asset ceiling binds instead.
	out = p.Decide(Input{Score: 80, RequestedCost: 1000, AssetValue: 1000, FraudFlagCount: 1})
	if !out.Approved {
		t.Fatalf("expected approval, got: %s", out.Reason)
	}
	if math.Abs(out.Amount-720) > 1e-9 {
		t.Errorf("amount = %v, want 720 (1000 * 0.9 * 0.8)", out.Amount)
	}
}

func TestDecideAssetLimitBinds(t *testing.T) {
	p := NewPolicy(nil)

	// Score 80 band: asset limit 500*0.9=450 < medication limit 1000.
	out := p.Decide(Input{Score: 80, RequestedCost: 1000, AssetValue: 500})
	if !out.Approved {
		t.Fatalf("expected approval, got: %s", out.Reason)
	}
	if out.Amount != 450 {
		t.Errorf("amount = %v, want 450", out.Amount)
	}
}

func TestDecideNeverExceedsRequest(t *testing.T) {
	p := NewPolicy(nil)

	out := p.Decide(Input{Score: 100, RequestedCost: 1000, AssetValue: 1000000})
	if !out.Approved {
		t.Fatalf("expected approval, got: %s", out.Reason)
	}
	if out.Amount > 1000 {
		t.Errorf("amount %v exceeds requested cost", out.Amount)
	}
}

func TestDecideUsefulnessGuard(t *testing.T) {
	p := NewPolicy(nil)

	t.Run("FloorBandTightAsset", func(t *testing.T) {
		// Asset exactly at the coverage floor passes that guard, but the
		// floor band limit (300 * 0.3 = 90) is below the useful minimum (200).
		out := p.Decide(Input{Score: 30, RequestedCost: 1000, AssetValue: 300})
		if out.Approved {
			t.Fatal("expected denial")
		}
		if out.Reason != domain.ReasonAmountTooLow {
			t.Errorf("reason = %q, want %q", out.Reason, domain.ReasonAmountTooLow)
		}
	})

	t.Run("AboveUsefulMinimumApproves", func(t *testing.T) {
		// Floor band with asset 700: limit = 700 * 0.3 = 210, above the
		// useful minimum of 200.
		out := p.Decide(Input{Score: 35, RequestedCost: 1000, AssetValue: 700})
		if !out.Approved {
			t.Fatalf("expected approval above the useful minimum, got: %s", out.Reason)
		}
		if math.Abs(out.Amount-210) > 1e-9 {
			t.Errorf("amount = %v, want 210", out.Amount)
		}
	})
}

func TestDecideCoverageFloorBoundary(t *testing.T) {
	p := NewPolicy(nil)

	// Asset exactly at 0.3x cost passes the coverage guard (strict less-than).
	out := p.Decide(Input{Score: 80, RequestedCost: 1000, AssetValue: 300})
	if out.Reason == domain.ReasonInsufficientAssetCoverage {
		t.Error("asset exactly at the coverage floor must pass the guard")
	}
}
