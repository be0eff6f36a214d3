package model

import "testing"

func TestIsUnitTerminal(t *testing.T) {
	tests := []struct {
		status   UnitStatus
		terminal bool
	}{
		{UnitStandby, false},
		{UnitInfil, false},
		{UnitTarget, false},
		{UnitAssault, false},
		{UnitConsolidate, false},
		{UnitExfil, false},
		{UnitComplete, true},
		{UnitFailed, true},
		{UnitAbort, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsUnitTerminal(tt.status); got != tt.terminal {
				t.Errorf("IsUnitTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestValidateUnitTransition(t *testing.T) {
	valid := []struct {
		from, to UnitStatus
	}{
		{UnitStandby, UnitInfil},
		{UnitInfil, UnitTarget},
		{UnitTarget, UnitAssault},
		{UnitAssault, UnitConsolidate},
		{UnitConsolidate, UnitExfil},
		{UnitExfil, UnitComplete},
		{UnitStandby, UnitFailed},
		{UnitAssault, UnitFailed},
		{UnitExfil, UnitAbort},
	}
	for _, tt := range valid {
		if err := ValidateUnitTransition(tt.from, tt.to); err != nil {
			t.Errorf("ValidateUnitTransition(%q, %q) = %v, want nil", tt.from, tt.to, err)
		}
	}

	invalid := []struct {
		from, to UnitStatus
	}{
		{UnitStandby, UnitTarget},
		{UnitStandby, UnitComplete},
		{UnitInfil, UnitExfil},
		{UnitComplete, UnitInfil},
		{UnitComplete, UnitFailed},
		{UnitFailed, UnitStandby},
		{UnitAbort, UnitAbort},
	}
	for _, tt := range invalid {
		if err := ValidateUnitTransition(tt.from, tt.to); err == nil {
			t.Errorf("ValidateUnitTransition(%q, %q) = nil, want error", tt.from, tt.to)
		}
	}
}

func TestValidateScenarioTransition(t *testing.T) {
	valid := []struct {
		from, to ScenarioStatus
	}{
		{ScenarioPlanning, ScenarioReady},
		{ScenarioPlanning, ScenarioFailed},
		{ScenarioReady, ScenarioExecuting},
		{ScenarioReady, ScenarioAborted},
		{ScenarioExecuting, ScenarioCompleted},
		{ScenarioExecuting, ScenarioFailed},
		{ScenarioExecuting, ScenarioAborted},
	}
	for _, tt := range valid {
		if err := ValidateScenarioTransition(tt.from, tt.to); err != nil {
			t.Errorf("ValidateScenarioTransition(%q, %q) = %v, want nil", tt.from, tt.to, err)
		}
	}

	invalid := []struct {
		from, to ScenarioStatus
	}{
		{ScenarioPlanning, ScenarioExecuting},
		{ScenarioPlanning, ScenarioCompleted},
		{ScenarioReady, ScenarioCompleted},
		{ScenarioCompleted, ScenarioExecuting},
		{ScenarioFailed, ScenarioReady},
	}
	for _, tt := range invalid {
		if err := ValidateScenarioTransition(tt.from, tt.to); err == nil {
			t.Errorf("ValidateScenarioTransition(%q, %q) = nil, want error", tt.from, tt.to)
		}
	}
}

func TestMaxThreat(t *testing.T) {
	tests := []struct {
		a, b, want ThreatLevel
	}{
		{ThreatGreen, ThreatGreen, ThreatGreen},
		{ThreatGreen, ThreatYellow, ThreatYellow},
		{ThreatRed, ThreatOrange, ThreatRed},
		{ThreatBlack, ThreatRed, ThreatBlack},
		{ThreatYellow, ThreatBlack, ThreatBlack},
	}
	for _, tt := range tests {
		if got := MaxThreat(tt.a, tt.b); got != tt.want {
			t.Errorf("MaxThreat(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
