package service

import "testing"

func TestLookupModel(t *testing.T) {
	model, ok := LookupModel("nanobanana")
	if !ok {
		t.Fatal("nanobanana should exist")
	}
	if model.CostTokens <= 0 {
		t.Errorf("cost = %v, want positive", model.CostTokens)
	}

	if _, ok := LookupModel("does-not-exist"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestModelKieModelSwitchesOnReferences(t *testing.T) {
	model, _ := LookupModel("nanobanana")
	if got := model.KieModel(false); got != "google/nano-banana" {
		t.Errorf("create model = %q, want google/nano-banana", got)
	}
	if got := model.KieModel(true); got != "google/nano-banana-edit" {
		t.Errorf("edit model = %q, want google/nano-banana-edit", got)
	}
}

func TestModelGPT4o(t *testing.T) {
	gpt, _ := LookupModel("gpt-4o")
	if !gpt.GPT4o() {
		t.Error("gpt-4o should use the gpt4o endpoints")
	}
	flux, _ := LookupModel("flux2")
	if flux.GPT4o() {
		t.Error("flux2 should not use the gpt4o endpoints")
	}
}

func TestCatalogHasPositiveCosts(t *testing.T) {
	for _, m := range Models() {
		if m.CostTokens <= 0 {
			t.Errorf("model %s has non-positive cost %v", m.ID, m.CostTokens)
		}
		if m.KieModelCreate == "" {
			t.Errorf("model %s has no provider mapping", m.ID)
		}
	}
}

func TestLookupPlan(t *testing.T) {
	plan, ok := LookupPlan("base")
	if !ok {
		t.Fatal("base plan should exist")
	}
	if plan.Tokens != 12 || plan.Amount != 470 {
		t.Errorf("base plan = %+v, want 12 tokens for 470", plan)
	}

	if _, ok := LookupPlan("gold"); ok {
		t.Error("unknown plan should not resolve")
	}
}

func TestPlansAreOrderedByAmount(t *testing.T) {
	plans := Plans()
	if len(plans) == 0 {
		t.Fatal("plan catalog is empty")
	}
	for i := 1; i < len(plans); i++ {
		if plans[i].Amount <= plans[i-1].Amount {
			t.Errorf("plan %s (%v) not more expensive than %s (%v)",
				plans[i].Code, plans[i].Amount, plans[i-1].Code, plans[i-1].Amount)
		}
	}
}
