package model_test

import (
	"testing"

	"tenderscout/sync-service/internal/model"
)

func TestLocalizedText_Primary(t *testing.T) {
	cases := []struct {
		name string
		text model.LocalizedText
		want string
	}{
		{"german wins", model.LocalizedText{"de": "Bau", "fr": "Construction"}, "de"},
		{"french next", model.LocalizedText{"fr": "Construction", "en": "Construction"}, "fr"},
		{"italian next", model.LocalizedText{"it": "Costruzione", "en": "Construction"}, "it"},
		{"english last", model.LocalizedText{"en": "Construction"}, "en"},
		{"empty strings are skipped", model.LocalizedText{"de": "", "fr": "Construction"}, "fr"},
		{"all empty defaults to german", model.LocalizedText{}, "de"},
		{"nil map defaults to german", nil, "de"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.text.Primary(); got != c.want {
				t.Errorf("Primary() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestLocalizedText_Get(t *testing.T) {
	text := model.LocalizedText{"fr": "Rénovation", "it": "Rinnovo"}

	if got := text.Get("fr"); got != "Rénovation" {
		t.Errorf("Get(fr) = %q", got)
	}
	// Missing language falls back through the priority order.
	if got := text.Get("de"); got != "Rénovation" {
		t.Errorf("Get(de) = %q, want French fallback", got)
	}
	if got := (model.LocalizedText{}).Get("de"); got != "" {
		t.Errorf("Get on empty = %q, want empty", got)
	}
}

func TestLocalizedText_Join(t *testing.T) {
	text := model.LocalizedText{"de": "Bau", "fr": "Construction", "it": ""}
	if got := text.Join(" "); got != "Bau Construction" {
		t.Errorf("Join = %q, want %q", got, "Bau Construction")
	}
	if got := (model.LocalizedText{}).Join(" "); got != "" {
		t.Errorf("Join on empty = %q, want empty", got)
	}
}

func TestCheckpoint_Resumable(t *testing.T) {
	cursor := "20260815|1042"
	empty := ""
	cases := []struct {
		name string
		cp   *model.Checkpoint
		want bool
	}{
		{"nil checkpoint", nil, false},
		{"no cursor", &model.Checkpoint{LastRunStatus: model.CheckpointInterrupted}, false},
		{"empty cursor", &model.Checkpoint{LastCursor: &empty, LastRunStatus: model.CheckpointInterrupted}, false},
		{"interrupted", &model.Checkpoint{LastCursor: &cursor, LastRunStatus: model.CheckpointInterrupted}, true},
		{"in progress", &model.Checkpoint{LastCursor: &cursor, LastRunStatus: model.CheckpointInProgress}, true},
		{"completed", &model.Checkpoint{LastCursor: &cursor, LastRunStatus: model.CheckpointCompleted}, false},
		{"failed", &model.Checkpoint{LastCursor: &cursor, LastRunStatus: model.CheckpointFailed}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.cp.Resumable(); got != c.want {
				t.Errorf("Resumable() = %v, want %v", got, c.want)
			}
		})
	}
}
