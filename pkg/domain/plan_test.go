package domain

import (
	"errors"
	"testing"
)

func TestActionPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    ActionPlan
		wantErr bool
	}{
		{"Complete", ActionPlan{Title: "T", Summary: "S", Content: "C"}, false},
		{"Missing Title", ActionPlan{Summary: "S", Content: "C"}, true},
		{"Missing Summary", ActionPlan{Title: "T", Content: "C"}, true},
		{"Missing Content", ActionPlan{Title: "T", Summary: "S"}, true},
		{"Empty", ActionPlan{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrIncompletePlan) {
					t.Errorf("Validate() = %v, want ErrIncompletePlan", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestActionPlan_Markdown(t *testing.T) {
	plan := ActionPlan{Title: "Next Steps", Summary: "Two calls.", Content: "- Call A\n- Call B"}
	want := "## Next Steps\n\nTwo calls.\n\n- Call A\n- Call B"
	if got := plan.Markdown(); got != want {
		t.Errorf("Markdown() = %q, want %q", got, want)
	}
}
