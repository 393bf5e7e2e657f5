package watcher

// ReloadPlan says what a change requires the server to redo.
type ReloadPlan struct {
	ReloadConfig bool
	ReloadCorpus bool
	Rebuild      bool
	ChangedFiles []string
}

// AnalyzeChanges maps a change event to a reload plan.
func AnalyzeChanges(event ChangeEvent) ReloadPlan {
	plan := ReloadPlan{ChangedFiles: event.Paths}

	switch event.Type {
	case ChangeTypeConfig:
		// Inclusion flags and weighting live in the config, so the corpus
		// index and the matrix both depend on it.
		plan.ReloadConfig = true
		plan.ReloadCorpus = true
		plan.Rebuild = true
	case ChangeTypeData:
		plan.ReloadCorpus = true
		plan.Rebuild = true
	}
	return plan
}
