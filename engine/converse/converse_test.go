package converse

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/AutoMatchAI/automatch-mvp/engine/domain"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	resp := ""
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func TestConvertBudget(t *testing.T) {
	cases := []struct {
		in   string
		want domain.Budget
	}{
		{"under 50k", domain.Budget{Max: 50000}},
		{"below 40000", domain.Budget{Max: 40000}},
		{"less than 35k", domain.Budget{Max: 35000}},
		{"over 80k", domain.Budget{Min: 80000}},
		{"more than 100000", domain.Budget{Min: 100000}},
		{"40k-60k", domain.Budget{Min: 40000, Max: 60000}},
		{"40 to 60k range", domain.Budget{Min: 40000, Max: 60000}},
		{"70k max", domain.Budget{Max: 70000}},
		{"affordable", domain.Budget{Max: 35000}},
		{"mid-range", domain.Budget{Min: 35000, Max: 70000}},
		{"luxury budget", domain.Budget{Min: 70000}},
		{"flexible", domain.Budget{}},
		{"", domain.Budget{}},
		{"whatever it costs", domain.Budget{}},
	}
	for _, c := range cases {
		if got := ConvertBudget(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("ConvertBudget(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestConvertBudget_AroundBand(t *testing.T) {
	got := ConvertBudget("around 60k")
	if got.Min < 47999 || got.Min > 48001 || got.Max < 65999 || got.Max > 66001 {
		t.Fatalf("expected roughly 48000-66000, got %+v", got)
	}
}

func TestConvertBodyTypes(t *testing.T) {
	got := ConvertBodyTypes([]string{"pickup", "hatch"})
	want := []domain.BodyType{domain.BodyUte, domain.BodyHatchback}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = ConvertBodyTypes([]string{"family car"})
	want = []domain.BodyType{domain.BodySUV, domain.BodySedan, domain.BodyWagon}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("size mapping failed: %v", got)
	}

	if got := ConvertBodyTypes(nil); !reflect.DeepEqual(got, []domain.BodyType{domain.BodySUV}) {
		t.Fatalf("empty input should default to suv: %v", got)
	}
	if got := ConvertBodyTypes([]string{"hovercraft"}); !reflect.DeepEqual(got, []domain.BodyType{domain.BodySUV}) {
		t.Fatalf("unknown input should default to suv: %v", got)
	}
}

func TestConvertBodyTypes_Deduplicates(t *testing.T) {
	got := ConvertBodyTypes([]string{"suv", "4wd"})
	if !reflect.DeepEqual(got, []domain.BodyType{domain.BodySUV}) {
		t.Fatalf("expected single suv, got %v", got)
	}
}

func TestConvertFuelTypes(t *testing.T) {
	got := ConvertFuelTypes([]string{"gasoline", "ev", "phev"})
	want := []domain.FuelType{domain.FuelPetrol, domain.FuelElectric, domain.FuelPlugInHybrid}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := ConvertFuelTypes(nil); !reflect.DeepEqual(got, []domain.FuelType{domain.FuelPetrol}) {
		t.Fatalf("empty input should default to petrol: %v", got)
	}
	if got := ConvertFuelTypes([]string{"steam"}); !reflect.DeepEqual(got, []domain.FuelType{domain.FuelPetrol}) {
		t.Fatalf("unknown input should default to petrol: %v", got)
	}
}

func TestConvertFuelTypes_HybridAliases(t *testing.T) {
	got := ConvertFuelTypes([]string{"plug in hybrid", "mild hybrid", "full hybrid", "battery electric"})
	want := []domain.FuelType{domain.FuelPlugInHybrid, domain.FuelHybrid, domain.FuelElectric}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestConvertFuelTypes_Preferences(t *testing.T) {
	got := ConvertFuelTypes([]string{"economical"})
	want := []domain.FuelType{domain.FuelHybrid, domain.FuelElectric}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("economical: got %v, want %v", got, want)
	}

	got = ConvertFuelTypes([]string{"no emissions"})
	if !reflect.DeepEqual(got, []domain.FuelType{domain.FuelElectric}) {
		t.Fatalf("no emissions: got %v", got)
	}

	got = ConvertFuelTypes([]string{"eco", "long range"})
	want = []domain.FuelType{
		domain.FuelElectric, domain.FuelHybrid, domain.FuelPlugInHybrid,
		domain.FuelDiesel, domain.FuelPetrol,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("eco + long range: got %v, want %v", got, want)
	}
}

func TestConvertUseCases_DirectMappings(t *testing.T) {
	c := NewConverter(&fakeCompleter{}, nil)
	tags, reqs := c.ConvertUseCases(context.Background(), []string{"family 5 seats", "heavy towing"})
	want := []domain.UseCaseTag{domain.UseFamily5Seat, domain.UseTowingHeavy}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("got %v, want %v", tags, want)
	}
	if len(reqs) != 0 {
		t.Fatalf("direct mappings produce no free-text requirements: %v", reqs)
	}
}

func TestConvertUseCases_GenericDefaultsToLightVariant(t *testing.T) {
	c := NewConverter(&fakeCompleter{}, nil)
	tags, _ := c.ConvertUseCases(context.Background(), []string{"towing", "family"})
	want := []domain.UseCaseTag{domain.UseTowingLight, domain.UseFamily5Seat}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("got %v, want %v", tags, want)
	}
}

func TestConvertUseCases_GenericSkippedWhenSpecificPresent(t *testing.T) {
	c := NewConverter(&fakeCompleter{}, nil)
	tags, _ := c.ConvertUseCases(context.Background(), []string{"towing", "heavy towing"})
	want := []domain.UseCaseTag{domain.UseTowingHeavy}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("generic term must yield to the specific variant: %v", tags)
	}
}

func TestConvertUseCases_VectorOnlyTerms(t *testing.T) {
	c := NewConverter(&fakeCompleter{}, nil)
	tags, reqs := c.ConvertUseCases(context.Background(), []string{"reliable", "easy to park"})
	if len(tags) != 0 {
		t.Fatalf("soft preferences should not map to tags: %v", tags)
	}
	want := []string{"reliable", "easy to park"}
	if !reflect.DeepEqual(reqs, want) {
		t.Fatalf("got %v, want %v", reqs, want)
	}
}

func TestConvertUseCases_UnknownClassifiedByCompleter(t *testing.T) {
	f := &fakeCompleter{responses: []string{`["TOWING_LIGHT"]`}}
	c := NewConverter(f, nil)
	tags, reqs := c.ConvertUseCases(context.Background(), []string{"pulling my jetski"})
	if !reflect.DeepEqual(tags, []domain.UseCaseTag{domain.UseTowingLight}) {
		t.Fatalf("got %v", tags)
	}
	// The phrase still travels as a free-text requirement.
	if !reflect.DeepEqual(reqs, []string{"pulling my jetski"}) {
		t.Fatalf("got %v", reqs)
	}
	if f.calls != 1 {
		t.Fatalf("expected one classification call, got %d", f.calls)
	}
}

func TestConvertUseCases_ClassificationRejectsUnknownTags(t *testing.T) {
	f := &fakeCompleter{responses: []string{`["TOWING_LIGHT","RACING"]`}}
	c := NewConverter(f, nil)
	tags, _ := c.ConvertUseCases(context.Background(), []string{"track days"})
	if !reflect.DeepEqual(tags, []domain.UseCaseTag{domain.UseTowingLight}) {
		t.Fatalf("invented tags must be filtered: %v", tags)
	}
}

func TestConvertUseCases_ClassificationFailureDegrades(t *testing.T) {
	f := &fakeCompleter{errs: []error{errors.New("invalid api key")}}
	c := NewConverter(f, nil)
	c.retry.InitialWait = 0
	tags, reqs := c.ConvertUseCases(context.Background(), []string{"mystery need"})
	if len(tags) != 0 {
		t.Fatalf("failed classification yields no tags: %v", tags)
	}
	if !reflect.DeepEqual(reqs, []string{"mystery need"}) {
		t.Fatalf("phrase must survive as requirement: %v", reqs)
	}
}

func TestHandle_ContinuationMessage(t *testing.T) {
	f := &fakeCompleter{responses: []string{"What budget are you working with?"}}
	h := NewHandler(f, nil)
	reply, err := h.Handle(context.Background(), []Message{{Role: "user", Content: "I need a new car"}})
	if err != nil {
		t.Fatal(err)
	}
	if reply.ReadyToSearch || reply.Criteria != nil {
		t.Fatalf("mid-conversation turn should not be ready: %+v", reply)
	}
	if reply.Message != "What budget are you working with?" {
		t.Fatalf("unexpected message: %q", reply.Message)
	}
}

func TestHandle_ReadyToSearch(t *testing.T) {
	f := &fakeCompleter{responses: []string{`{
		"readyToSearch": true,
		"searchSummary": {
			"budget": "under 60k",
			"useCases": ["family 5 seats", "light towing"],
			"bodyTypes": ["suv"],
			"fuelTypes": ["hybrid"],
			"additionalRequirements": ["good safety rating"]
		}
	}`}}
	h := NewHandler(f, nil)
	reply, err := h.Handle(context.Background(), []Message{
		{Role: "user", Content: "family SUV under 60k, hybrid, tows a small boat, safe"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reply.ReadyToSearch || reply.Criteria == nil {
		t.Fatalf("expected ready state: %+v", reply)
	}
	c := reply.Criteria
	if c.Budget == nil || c.Budget.Max != 60000 {
		t.Fatalf("budget not converted: %+v", c.Budget)
	}
	wantTags := []domain.UseCaseTag{domain.UseFamily5Seat, domain.UseTowingLight}
	if !reflect.DeepEqual(c.UseCases, wantTags) {
		t.Fatalf("use cases: %v", c.UseCases)
	}
	if !reflect.DeepEqual(c.BodyTypes, []domain.BodyType{domain.BodySUV}) {
		t.Fatalf("body types: %v", c.BodyTypes)
	}
	if !reflect.DeepEqual(c.FuelTypes, []domain.FuelType{domain.FuelHybrid}) {
		t.Fatalf("fuel types: %v", c.FuelTypes)
	}
	if !reflect.DeepEqual(c.Requirements, []string{"good safety rating"}) {
		t.Fatalf("requirements: %v", c.Requirements)
	}
}

func TestHandle_FencedReadiness(t *testing.T) {
	f := &fakeCompleter{responses: []string{
		"```json\n{\"readyToSearch\":true,\"searchSummary\":{\"budget\":\"flexible\",\"useCases\":[\"family\"]}}\n```",
	}}
	h := NewHandler(f, nil)
	reply, err := h.Handle(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reply.ReadyToSearch {
		t.Fatalf("fenced readiness block should parse: %+v", reply)
	}
}

func TestHandle_EmptyHistory(t *testing.T) {
	h := NewHandler(&fakeCompleter{}, nil)
	if _, err := h.Handle(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestHandle_CompleterErrorPropagates(t *testing.T) {
	f := &fakeCompleter{errs: []error{errors.New("invalid api key")}}
	h := NewHandler(f, nil)
	h.retry.InitialWait = 0
	if _, err := h.Handle(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected error")
	}
}
