package report

import (
	"strings"
	"testing"
)

func TestRecommendation(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		want     string
	}{
		{
			name:     "bid",
			sections: []Section{{Task: "bid_recommendation", Text: "Strong fit.\nOVERALL_RECOMMENDATION=BID"}},
			want:     "Bid",
		},
		{
			name:     "no bid",
			sections: []Section{{Task: "bid_recommendation", Text: "Weak fit.\nOVERALL_RECOMMENDATION=NO_BID"}},
			want:     "No Bid",
		},
		{
			name:     "no marker",
			sections: []Section{{Task: "title_summary", Text: "summary only"}},
			want:     "Unknown",
		},
		{
			name:     "empty report",
			sections: nil,
			want:     "Unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &Report{DocumentID: "doc", Sections: tt.sections}
			if got := Recommendation(rep); got != tt.want {
				t.Errorf("Recommendation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderLayout(t *testing.T) {
	rep := &Report{
		DocumentID: "RS3-24-0007",
		State:      StateComplete,
		Sections: []Section{
			{Task: "extract_requirements", Text: "R1, R2"},
			{Task: "bid_recommendation", Text: "OVERALL_RECOMMENDATION=BID"},
		},
	}
	out := Render(rep, "RFP")

	for _, want := range []string{
		"# Recommendation: Bid\n",
		"# RS3-24-0007 - RFP\n",
		"## Extract Requirements\n",
		"R1, R2",
		"## Bid Recommendation\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q:\n%s", want, out)
		}
	}

	// Sections appear in execution order.
	if strings.Index(out, "Extract Requirements") > strings.Index(out, "Bid Recommendation") {
		t.Error("sections rendered out of order")
	}
}
