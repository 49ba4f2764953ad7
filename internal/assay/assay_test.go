package assay_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/assayfit-cli/internal/assay"
	"github.com/KaramelBytes/assayfit-cli/internal/assaytest"
	"github.com/KaramelBytes/assayfit-cli/internal/table"
)

func mustTable(t *testing.T, data []byte) *table.RawTable {
	t.Helper()
	tb, err := table.ParseCSV("test.csv", data, table.DefaultOptions())
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return tb
}

func TestDetect(t *testing.T) {
	temps := []float64{30, 33, 36, 39, 42, 45, 48, 51}
	cases := []struct {
		name string
		data []byte
		want assay.LayoutKind
	}{
		{"kinetic", assaytest.DefaultKinetic().CSV(), assay.KineticAssay},
		{"vertical", assaytest.ThermoVertical(temps, -0.8, 42, 1), assay.ThermoVertical},
		{"horizontal", assaytest.ThermoHorizontal(temps, -0.8, 42, 1), assay.ThermoHorizontal},
	}
	for _, tc := range cases {
		got, err := assay.Detect(mustTable(t, tc.data))
		if err != nil {
			t.Fatalf("%s: detect: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDetect_Unrecognized(t *testing.T) {
	_, err := assay.Detect(mustTable(t, assaytest.Unrecognized()))
	if !errors.Is(err, assay.ErrUnrecognizedLayout) {
		t.Fatalf("expected ErrUnrecognizedLayout, got %v", err)
	}
	if assay.Kind(err) != "unrecognized_layout" {
		t.Fatalf("Kind = %q", assay.Kind(err))
	}
}

func TestDetect_KineticTakesPrecedenceOverRowMarker(t *testing.T) {
	g := assaytest.DefaultKinetic().Grid()
	g.Set(2, 1, "Row")
	got, err := assay.Detect(mustTable(t, g.CSV()))
	if err != nil || got != assay.KineticAssay {
		t.Fatalf("got %s, %v", got, err)
	}
}

func TestDetect_KineticWithBlankProbeCells(t *testing.T) {
	for _, cell := range [][2]int{{2, 6}, {2, 7}} {
		g := assaytest.DefaultKinetic().Grid()
		g.Set(cell[0], cell[1], "")
		tb := mustTable(t, g.CSV())
		got, err := assay.Detect(tb)
		if err != nil || got != assay.KineticAssay {
			t.Fatalf("blank %v: got %s, %v", cell, got, err)
		}
		_, err = assay.ReadUnitContext(tb)
		var fe *assay.FieldError
		if !errors.As(err, &fe) || fe.Row != cell[0] || fe.Col != cell[1] {
			t.Fatalf("blank %v: expected FieldError at the cell, got %v", cell, err)
		}
	}
}

func TestDetect_TextHeaderInHorizontalSheetIsNotKinetic(t *testing.T) {
	g := assaytest.NewGrid(8, 15)
	for c := 3; c <= 14; c++ {
		g.SetFloat(1, c, float64(28+2*c)).SetFloat(4, c, 1).SetFloat(5, c, 1)
	}
	g.Set(1, 6, "Blank")
	got, err := assay.Detect(mustTable(t, g.CSV()))
	if err != nil || got != assay.ThermoHorizontal {
		t.Fatalf("got %s, %v", got, err)
	}
}

func TestExtractKinetic_BlankWellsShrinkBothAxes(t *testing.T) {
	k := assaytest.DefaultKinetic()
	k.Blank = []int{1, 7, 23}
	s, err := assay.Extract(mustTable(t, k.CSV()), assay.KineticAssay)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 21 || len(s.Y) != 21 {
		t.Fatalf("len = %d/%d, want 21", len(s.X), len(s.Y))
	}
	if len(s.Mask) != 24 {
		t.Fatalf("mask len = %d", len(s.Mask))
	}
	slopes := k.Slopes()
	j := 0
	for i, kept := range s.Mask {
		blank := i == 1 || i == 7 || i == 23
		if kept == blank {
			t.Fatalf("mask[%d] = %v", i, kept)
		}
		if !kept {
			continue
		}
		if s.X[j] != assay.SubstrateLadder[i] {
			t.Fatalf("X[%d] = %v, want ladder[%d] = %v", j, s.X[j], i, assay.SubstrateLadder[i])
		}
		if s.Y[j] != slopes[i] {
			t.Fatalf("Y[%d] = %v, want %v", j, s.Y[j], slopes[i])
		}
		j++
	}
}

func TestExtractKinetic_NonNumericSlopeIsMasked(t *testing.T) {
	g := assaytest.DefaultKinetic().Grid()
	g.Set(4, 2, "OVRFLW")
	g.Set(5, 3, "#N/A")
	s, err := assay.Extract(mustTable(t, g.CSV()), assay.KineticAssay)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 22 {
		t.Fatalf("len = %d, want 22", s.Len())
	}
}

func TestExtract_NoValidData(t *testing.T) {
	k := assaytest.DefaultKinetic()
	for i := 0; i < 24; i++ {
		k.Blank = append(k.Blank, i)
	}
	_, err := assay.Extract(mustTable(t, k.CSV()), assay.KineticAssay)
	if !errors.Is(err, assay.ErrNoValidData) {
		t.Fatalf("expected ErrNoValidData, got %v", err)
	}
}

func TestExtractVertical_RepeatsTemperaturePerReplicate(t *testing.T) {
	temps := []float64{30, 33, 36, 39, 42, 45, 48, 51}
	s, err := assay.Extract(mustTable(t, assaytest.ThermoVertical(temps, -0.8, 42, 2)), assay.ThermoVertical)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 24 {
		t.Fatalf("len = %d", s.Len())
	}
	for i := range s.X {
		if s.X[i] != temps[i/3] {
			t.Fatalf("X[%d] = %v, want %v", i, s.X[i], temps[i/3])
		}
	}
}

func TestExtractVertical_DropsNegativeTemperature(t *testing.T) {
	temps := []float64{-5, 33, 36, 39, 42, 45, 48, 51}
	s, err := assay.Extract(mustTable(t, assaytest.ThermoVertical(temps, -0.8, 42, 1)), assay.ThermoVertical)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 21 {
		t.Fatalf("len = %d, want 21", s.Len())
	}
	if len(s.Warnings) == 0 || !strings.Contains(s.Warnings[0], "negative temperature") {
		t.Fatalf("expected negative temperature warning, got %v", s.Warnings)
	}
}

func TestExtractHorizontal_SkipsNonNumericHeaders(t *testing.T) {
	temps := []float64{30, 32, 34, 36, 38, 40, 42, 44, 46, 48, 50, 52}
	tb := mustTable(t, assaytest.ThermoHorizontal(temps, -0.8, 42, 1))
	s, err := assay.Extract(tb, assay.ThermoHorizontal)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 24 {
		t.Fatalf("len = %d, want 24", s.Len())
	}
	if s.X[0] != 30 || s.X[1] != 30 || s.X[2] != 32 {
		t.Fatalf("unexpected pairing: %v", s.X[:3])
	}

	g := assaytest.NewGrid(8, 15)
	g.SetFloat(1, 3, 30).SetFloat(4, 3, 1).SetFloat(5, 3, 0.9)
	g.Set(1, 4, "Blank").SetFloat(4, 4, 0.01).SetFloat(5, 4, 0.02)
	s, err = assay.Extract(mustTable(t, g.CSV()), assay.ThermoHorizontal)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if len(s.Warnings) != 1 || !strings.Contains(s.Warnings[0], `"Blank"`) {
		t.Fatalf("warnings = %v", s.Warnings)
	}
}

func TestReadUnitContext(t *testing.T) {
	k := assaytest.DefaultKinetic()
	k.Yield = "2.0 µ"
	uc, err := assay.ReadUnitContext(mustTable(t, k.CSV()))
	if err != nil {
		t.Fatalf("unit context: %v", err)
	}
	if uc.Yield != 2.0 || uc.Dilution != 10 || uc.YieldUnit != "(mg/mL)" || uc.SlopeUnit != "(mM/s)" {
		t.Fatalf("unexpected context: %+v", uc)
	}
}

func TestReadUnitContext_Malformed(t *testing.T) {
	cases := []struct {
		name     string
		yield    string
		dilution string
		col      int
	}{
		{"non-numeric yield", "lots", "10", 6},
		{"zero dilution", "2.0", "0", 7},
		{"negative yield", "-1", "10", 6},
	}
	for _, tc := range cases {
		k := assaytest.DefaultKinetic()
		k.Yield, k.Dilution = tc.yield, tc.dilution
		_, err := assay.ReadUnitContext(mustTable(t, k.CSV()))
		var fe *assay.FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("%s: expected FieldError, got %v", tc.name, err)
		}
		if fe.Col != tc.col || !errors.Is(err, assay.ErrMissingField) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestScaleSlope_AdjustmentsCommute(t *testing.T) {
	v := 12.5
	got := assay.ScaleSlope(v, "(10^-3/s)")
	manual := (v * 60) / 1000
	if math.Abs(got-manual) > 1e-12 {
		t.Fatalf("ScaleSlope = %v, manual = %v", got, manual)
	}
	cases := map[string]float64{
		"(1/min)":     v,
		"(1/s)":       v * 60,
		"(10^-3/min)": v / 1000,
		"":            v,
	}
	for unit, want := range cases {
		if got := assay.ScaleSlope(v, unit); math.Abs(got-want) > 1e-12 {
			t.Errorf("ScaleSlope(%q) = %v, want %v", unit, got, want)
		}
	}
}

func TestEnzymeMolar(t *testing.T) {
	base := assay.UnitContext{Yield: 5, Dilution: 5}
	cases := map[string]float64{
		"A280*":   1 / assay.EpsilonEnzyme,
		"(mg/mL)": 1 / assay.MolarMassEnzyme,
		"(M)":     1,
		"(mM)":    1e-3,
		"(uM)":    1e-6,
		"(ng/uL)": 0,
	}
	for unit, want := range cases {
		uc := base
		uc.YieldUnit = unit
		if got := assay.EnzymeMolar(uc); math.Abs(got-want) > 1e-15 {
			t.Errorf("EnzymeMolar(%s) = %v, want %v", unit, got, want)
		}
	}
}

func TestObservedRates_UnknownUnitIsDivisionByZero(t *testing.T) {
	_, err := assay.ObservedRates([]float64{1}, assay.UnitContext{YieldUnit: "(ng/uL)", Yield: 1, Dilution: 1})
	if !errors.Is(err, assay.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if !strings.Contains(err.Error(), "(ng/uL)") {
		t.Fatalf("message should name the unit: %v", err)
	}
}

func TestObservedRates_RoundTripsFixture(t *testing.T) {
	k := assaytest.DefaultKinetic()
	uc := assay.UnitContext{SlopeUnit: k.SlopeUnit, YieldUnit: k.YieldUnit, Yield: 2, Dilution: 10}
	r, err := assay.ObservedRates(k.Slopes(), uc)
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	want := k.Kobs()
	for i := range want {
		if math.Abs(r.Kobs[i]-want[i]) > 1e-9*math.Max(1, want[i]) {
			t.Fatalf("kobs[%d] = %v, want %v", i, r.Kobs[i], want[i])
		}
	}
}

func TestKind(t *testing.T) {
	fe := &assay.FieldError{Row: 2, Col: 6, Field: "yield", Reason: "blank"}
	fit := &assay.FitError{Stage: "michaelis-menten", Err: errors.New("max iterations")}
	cases := map[error]string{
		fe:                      "missing_or_malformed_field",
		fit:                     "curve_fit_failed",
		assay.ErrDivisionByZero: "division_by_zero",
		assay.ErrInvalidFit:     "invalid_fit",
		errors.New("other"):     "",
		nil:                     "",
	}
	for err, want := range cases {
		if got := assay.Kind(err); got != want {
			t.Errorf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
