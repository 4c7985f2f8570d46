package service

import (
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
)

func TestValidateGateTransitionNext(t *testing.T) {
	// 相邻推进全部合法
	for i := 0; i < len(entity.GateSequence)-1; i++ {
		current := entity.GateSequence[i]
		next := entity.GateSequence[i+1]
		if err := ValidateGateTransition(current, next); err != nil {
			t.Errorf("%s -> %s should be allowed: %v", current, next, err)
		}
	}
}

func TestValidateGateTransitionBackwards(t *testing.T) {
	err := ValidateGateTransition(entity.GateG2, entity.GateG1)
	if err == nil {
		t.Fatal("backwards transition must be rejected")
	}
	if !strings.Contains(err.Error(), "回退") {
		t.Errorf("backwards rejection should name the violation, got %q", err.Error())
	}
	// 报错需指出唯一可推进的下一门
	if !strings.Contains(err.Error(), entity.GateG3) {
		t.Errorf("rejection should name the acceptable next gate, got %q", err.Error())
	}
}

func TestValidateGateTransitionSkip(t *testing.T) {
	err := ValidateGateTransition(entity.GateG2, entity.GateG4)
	if err == nil {
		t.Fatal("skipping gates must be rejected")
	}
	if !strings.Contains(err.Error(), "跳级") {
		t.Errorf("skip rejection should name the violation, got %q", err.Error())
	}
}

func TestValidateGateTransitionSame(t *testing.T) {
	if err := ValidateGateTransition(entity.GateG2, entity.GateG2); err == nil {
		t.Fatal("no-op transition must be rejected")
	}
}

func TestValidateGateTransitionLaunchedTerminal(t *testing.T) {
	if err := ValidateGateTransition(entity.GateLaunched, entity.GateG0); err == nil {
		t.Fatal("launched projects must not advance")
	}
}

func TestValidateGateTransitionUnknownGates(t *testing.T) {
	if err := ValidateGateTransition("G9", entity.GateG1); err == nil {
		t.Fatal("unknown current gate must be rejected")
	}
	if err := ValidateGateTransition(entity.GateG0, "G9"); err == nil {
		t.Fatal("unknown target gate must be rejected")
	}
}

func TestGateStatusMapTotal(t *testing.T) {
	// 每个阶段门都必须有派生状态，否则推进时会落库空状态
	for _, gate := range entity.GateSequence {
		status, ok := entity.GateStatusMap[gate]
		if !ok || status == "" {
			t.Errorf("gate %s has no derived status", gate)
		}
	}
	if entity.GateStatusMap[entity.GateG3] != entity.NPDStatusTesting {
		t.Error("G3 should derive testing")
	}
	if entity.GateStatusMap[entity.GateG4] != entity.NPDStatusTesting {
		t.Error("G4 should derive testing")
	}
	if entity.GateStatusMap[entity.GateLaunched] != entity.NPDStatusLaunched {
		t.Error("Launched should derive launched")
	}
}
