package humanpoints

import (
	"testing"
	"time"
)

func TestShouldRunRequiresProgramAndWriteEnabled(t *testing.T) {
	cfg := Config{ProgramEnabled: false, WriteEnabled: true, StartTimestamp: time.Unix(0, 0)}
	if ShouldRun(cfg, 1) {
		t.Error("expected ShouldRun to be false when ProgramEnabled is false")
	}

	cfg = Config{ProgramEnabled: true, WriteEnabled: false, StartTimestamp: time.Unix(0, 0)}
	if ShouldRun(cfg, 1) {
		t.Error("expected ShouldRun to be false when WriteEnabled is false")
	}
}

func TestShouldRunRequiresPassingBinaryScore(t *testing.T) {
	cfg := Config{ProgramEnabled: true, WriteEnabled: true, StartTimestamp: time.Unix(0, 0)}
	if ShouldRun(cfg, 0) {
		t.Error("expected ShouldRun to be false for a failing binary score")
	}
	if !ShouldRun(cfg, 1) {
		t.Error("expected ShouldRun to be true for a passing binary score once gates are satisfied")
	}
}

func TestShouldRunRespectsStartTimestamp(t *testing.T) {
	future := Config{ProgramEnabled: true, WriteEnabled: true, StartTimestamp: time.Now().Add(24 * time.Hour)}
	if ShouldRun(future, 1) {
		t.Error("expected ShouldRun to be false before the program start timestamp")
	}

	past := Config{ProgramEnabled: true, WriteEnabled: true, StartTimestamp: time.Now().Add(-24 * time.Hour)}
	if !ShouldRun(past, 1) {
		t.Error("expected ShouldRun to be true once the start timestamp has passed")
	}
}

func TestActionCodesAreThreeLetters(t *testing.T) {
	codes := []string{
		ActionHumanKeys, ActionScoringBonus, ActionMetaMaskOG,
		ActionSeasonedOG, ActionChosenOne, ActionPassportMint, ActionHumanIDMint,
	}
	for _, c := range codes {
		if len(c) != 3 {
			t.Errorf("action code %q is not 3 letters", c)
		}
	}
}
