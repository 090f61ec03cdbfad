package decision

import "testing"

func TestDecision_Message(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		want     string
	}{
		{
			name:     "enabled",
			decision: Decision{FlagKey: "discount", Enabled: true, UserID: "u-1"},
			want:     `The Flag "discount" was Enabled for the user "u-1"`,
		},
		{
			name:     "not enabled",
			decision: Decision{FlagKey: "discount", Enabled: false, UserID: "u-2"},
			want:     `The Flag "discount" was Not Enabled for the user "u-2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.decision.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
