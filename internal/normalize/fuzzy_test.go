package normalize

import (
	"math"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PyTorch", "pytorch"},
		{"PyTorch!", "pytorch"},
		{"  Natural   Language Processing ", "natural language processing"},
		{"transformer-based", "transformer"},
		{"Transformer architecture", "transformer"},
		{"diffusion models", "diffusion"},
		{"PyTorch 2.0", "pytorch 2 0"},
		{"based", "based"},
		{"models", "models"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := cleanKey(tt.in); got != tt.want {
				t.Errorf("cleanKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	exact := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "pytorch", "pytorch", 1},
		{"both empty", "", "", 1},
		{"one empty", "pytorch", "", 0},
		{"single edit", "pytorc", "pytorch", 1 - 1.0/7},
		{"reordered tokens", "language natural processing", "natural language processing", 1},
	}
	for _, tt := range exact {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
			if sym := similarity(tt.b, tt.a); math.Abs(sym-got) > 1e-9 {
				t.Errorf("similarity is not symmetric: %f vs %f", got, sym)
			}
		})
	}

	// Unrelated names must stay clear of the matching threshold.
	distant := [][2]string{
		{"deep learning", "reinforcement learning"},
		{"pytorch", "tensorflow"},
		{"cuda", "lora"},
	}
	for _, pair := range distant {
		if got := similarity(pair[0], pair[1]); got >= 0.85 {
			t.Errorf("similarity(%q, %q) = %f, want < 0.85", pair[0], pair[1], got)
		}
	}
}

func TestTokenOverlapDeduplicates(t *testing.T) {
	// Repeated tokens count once on each side.
	if got := tokenOverlap("deep deep learning", "deep learning"); got != 1 {
		t.Errorf("tokenOverlap = %f, want 1", got)
	}
}

func TestFuzzyMatch(t *testing.T) {
	candidates := []candidate{
		{cleaned: "pytorch", skillID: "pytorch"},
		{cleaned: "torch", skillID: "pytorch"},
		{cleaned: "jax", skillID: "jax"},
	}

	tests := []struct {
		name          string
		key           string
		wantID        string
		wantAmbiguous bool
	}{
		{"close to one skill", "pytorc", "pytorch", false},
		{"no candidate close enough", "mamba", "", false},
		{"two surfaces of the same skill", "pytorch", "pytorch", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ambiguous := fuzzyMatch(tt.key, candidates, 0.85)
			if id != tt.wantID || ambiguous != tt.wantAmbiguous {
				t.Errorf("fuzzyMatch(%q) = (%q, %v), want (%q, %v)",
					tt.key, id, ambiguous, tt.wantID, tt.wantAmbiguous)
			}
		})
	}
}

func TestFuzzyMatchAmbiguous(t *testing.T) {
	candidates := []candidate{
		{cleaned: "distributed training", skillID: "distributed-training"},
		{cleaned: "distributed trainer", skillID: "other"},
	}
	id, ambiguous := fuzzyMatch("distributed trainin", candidates, 0.85)
	if !ambiguous {
		t.Fatalf("fuzzyMatch = (%q, %v), want ambiguous", id, ambiguous)
	}
}
