package notam

import "testing"

func TestClassifyEffect_ExactTokens(t *testing.T) {
	cases := []struct {
		text string
		want Effect
	}{
		{"A1234/24 NOTAMN\nQ) RKRR/QMRLC/IV/NBO/A/000/999", EffectNew},
		{"A1234/24 NOTAMR A1100/24\nQ) RKRR/QMRLC", EffectReplace},
		{"A1234/24 NOTAMC A1100/24", EffectCancel},
		{"... NOTAMN A1234/24 ...", EffectNew},
		{"... NOTAMC A1045/24 ...", EffectCancel},
	}
	for _, c := range cases {
		if got := ClassifyEffect(c.text); got != c.want {
			t.Fatalf("ClassifyEffect(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestClassifyEffect_CancelBeatsReplaceBeatsNew(t *testing.T) {
	// All three tokens present; the cancel reading wins.
	text := "A0001/24 NOTAMN NOTAMR NOTAMC A0002/24"
	if got := ClassifyEffect(text); got != EffectCancel {
		t.Fatalf("got %q, want %q", got, EffectCancel)
	}
	text = "A0001/24 NOTAMN then NOTAMR A0002/24"
	if got := ClassifyEffect(text); got != EffectReplace {
		t.Fatalf("got %q, want %q", got, EffectReplace)
	}
}

func TestClassifyEffect_LooseFallback(t *testing.T) {
	// Token glued to following text still classifies via the substring pass.
	if got := ClassifyEffect("A0001/24 NOTAMC(PREVIOUS A0002/24)"); got != EffectCancel {
		t.Fatalf("got %q, want %q", got, EffectCancel)
	}
	if got := ClassifyEffect("A0001/24 NOTAMR/A0002/24"); got != EffectReplace {
		t.Fatalf("got %q, want %q", got, EffectReplace)
	}
}

func TestClassifyEffect_IgnoresTokenPastHeaderWindow(t *testing.T) {
	pad := make([]byte, headerWindow)
	for i := range pad {
		pad[i] = 'X'
	}
	text := string(pad) + " NOTAMC A0002/24"
	if got := ClassifyEffect(text); got != EffectNew {
		t.Fatalf("token past header window classified as %q, want %q", got, EffectNew)
	}
}

func TestClassifyEffect_DefaultsToNew(t *testing.T) {
	if got := ClassifyEffect(""); got != EffectNew {
		t.Fatalf("empty text: got %q, want %q", got, EffectNew)
	}
	if got := ClassifyEffect("RWY 15L/33R CLSD DUE TO MAINT"); got != EffectNew {
		t.Fatalf("no token: got %q, want %q", got, EffectNew)
	}
}

func TestCancelledReference_Extracts(t *testing.T) {
	ref, ok := CancelledReference("A2000/24 NOTAMC A1045/24\nQ) RKRR/QMRXX")
	if !ok || ref != "A1045/24" {
		t.Fatalf("got (%q, %v), want (%q, true)", ref, ok, "A1045/24")
	}
	ref, ok = CancelledReference("C0042/25 NOTAMR C0021/25 Q) RKRR")
	if !ok || ref != "C0021/25" {
		t.Fatalf("got (%q, %v), want (%q, true)", ref, ok, "C0021/25")
	}
}

func TestCancelledReference_NoMatch(t *testing.T) {
	// Bare token, lowercase series, a non-cancel token, and a plain
	// cross-reference must all come back empty.
	for _, text := range []string{
		"",
		"A1234/24 NOTAMN RWY CLSD",
		"NOTAMC",
		"NOTAMC a1045/24",
		"NOTAMX A1045/24",
		"SEE NOTAM A1045/24",
	} {
		if ref, ok := CancelledReference(text); ok {
			t.Fatalf("CancelledReference(%q) = (%q, true), want no match", text, ref)
		}
	}
}

func TestBuildCancelledSet_CollectsFromReplaceAndCancel(t *testing.T) {
	batch := []Record{
		{Number: "A1045/24", Text: "A1045/24 NOTAMN B) 2401010000 C) 2401312359"},
		{Number: "A1100/24", Text: "A1100/24 NOTAMR A1045/24 B) 2401150000 C) 2402152359"},
		{Number: "A1200/24", Text: "A1200/24 NOTAMC A1100/24"},
	}
	set := BuildCancelledSet(batch)
	if !set.Has("A1045/24") {
		t.Fatalf("replaced record missing from cancelled set")
	}
	if !set.Has("A1100/24") {
		t.Fatalf("cancelled record missing from cancelled set")
	}
	if set.Has("A1200/24") {
		t.Fatalf("cancelling record should not void itself")
	}
	if len(set) != 2 {
		t.Fatalf("set size = %d, want 2", len(set))
	}
}

func TestBuildCancelledSet_IgnoresNewRecords(t *testing.T) {
	// A NOTAMN that merely mentions another number must not void it.
	batch := []Record{
		{Number: "A0001/24", Text: "A0001/24 NOTAMN REF NOTAM A0002/24 RWY CLSD"},
	}
	if set := BuildCancelledSet(batch); len(set) != 0 {
		t.Fatalf("set = %v, want empty", set)
	}
}
