package auth

import "testing"

func TestValidIntent(t *testing.T) {
	for _, name := range RegisteredIntents() {
		if !ValidIntent(name) {
			t.Fatalf("catalog intent %q not valid", name)
		}
	}
	for _, name := range []string{"", "officers", "officers.delete", "OFFICERS.VIEW", "*"} {
		if ValidIntent(name) {
			t.Fatalf("intent %q should not be registered", name)
		}
	}
}

func TestIntentSetMissing(t *testing.T) {
	set := IntentSet{
		IntentOfficersView: true,
		IntentOfficersEdit: false,
	}

	if name, missing := set.Missing([]string{IntentOfficersView}); missing {
		t.Fatalf("granted intent reported missing: %s", name)
	}
	if name, missing := set.Missing(nil); missing {
		t.Fatalf("empty requirement reported missing: %s", name)
	}

	// Explicit false and absent behave the same, and the first miss in
	// requirement order is the one reported.
	name, missing := set.Missing([]string{IntentOfficersView, IntentOfficersEdit, IntentActivityView})
	if !missing || name != IntentOfficersEdit {
		t.Fatalf("got (%q, %v), want (%q, true)", name, missing, IntentOfficersEdit)
	}
	name, missing = set.Missing([]string{IntentActivityView, IntentOfficersEdit})
	if !missing || name != IntentActivityView {
		t.Fatalf("got (%q, %v), want (%q, true)", name, missing, IntentActivityView)
	}
}
