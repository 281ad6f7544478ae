package types

import "testing"

func TestDefaultAutoExecute_FalseForHighAndCritical(t *testing.T) {
	if DefaultAutoExecute(RiskHigh) {
		t.Error("high risk routes must default to AutoExecute=false")
	}
	if DefaultAutoExecute(RiskCritical) {
		t.Error("critical risk routes must default to AutoExecute=false")
	}
}

func TestDefaultAutoExecute_TrueForLowerTiers(t *testing.T) {
	for _, risk := range []Risk{RiskNone, RiskLow, RiskMedium} {
		if !DefaultAutoExecute(risk) {
			t.Errorf("risk tier %q should default to AutoExecute=true", risk)
		}
	}
}
