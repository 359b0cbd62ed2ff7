package auth

// Intent names known at build time. Required-intent declarations must use
// these constants so that typos fail the build, not the request.
const (
	IntentOfficersView        = "officers.view"
	IntentOfficersEdit        = "officers.edit"
	IntentActivityView        = "activity.view"
	IntentPatrolsManage       = "patrols.manage"
	IntentEvaluationsManage   = "evaluations.manage"
	IntentAnnouncementsManage = "announcements.manage"
	IntentEventsManage        = "events.manage"
	IntentIntentsManage       = "intents.manage"
	IntentAccountsManage      = "accounts.manage"
)

var registeredIntents = map[string]struct{}{
	IntentOfficersView:        {},
	IntentOfficersEdit:        {},
	IntentActivityView:        {},
	IntentPatrolsManage:       {},
	IntentEvaluationsManage:   {},
	IntentAnnouncementsManage: {},
	IntentEventsManage:        {},
	IntentIntentsManage:       {},
	IntentAccountsManage:      {},
}

// ValidIntent reports whether name belongs to the registered catalog.
func ValidIntent(name string) bool {
	_, ok := registeredIntents[name]
	return ok
}

// RegisteredIntents returns the catalog for listing endpoints.
func RegisteredIntents() []string {
	out := make([]string, 0, len(registeredIntents))
	for k := range registeredIntents {
		out = append(out, k)
	}
	return out
}

// IntentSet is a sparse grant mapping. An absent key and an explicit false are
// both "not granted"; only an explicit true grants. There is no wildcard
// intent: "can do everything" is an enumerated set of grants.
type IntentSet map[string]bool

// Granted reports whether the set explicitly grants name.
func (s IntentSet) Granted(name string) bool {
	return s[name]
}

// Missing returns the first required intent the set does not grant. Evaluation
// is pure set inclusion over the declared requirements.
func (s IntentSet) Missing(required []string) (string, bool) {
	for _, name := range required {
		if !s.Granted(name) {
			return name, true
		}
	}
	return "", false
}
