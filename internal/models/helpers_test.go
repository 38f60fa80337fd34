package models

import "testing"

func TestUnionLabelIDs(t *testing.T) {
	tests := []struct {
		name string
		sets [][]string
		want []string
	}{
		{"empty", nil, []string{}},
		{"single set", [][]string{{"a", "b"}}, []string{"a", "b"}},
		{"duplicates across sets", [][]string{{"a", "b"}, {"b", "c"}}, []string{"a", "b", "c"}},
		{"duplicates within a set", [][]string{{"a", "a", "b"}}, []string{"a", "b"}},
		{"first-seen order wins", [][]string{{"c"}, {"a", "c"}, {"b", "a"}}, []string{"c", "a", "b"}},
		{"empty ids dropped", [][]string{{"", "a"}, {"", "b"}}, []string{"a", "b"}},
		{"nil sets skipped", [][]string{nil, {"a"}, nil}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnionLabelIDs(tt.sets...)
			if len(got) != len(tt.want) {
				t.Fatalf("UnionLabelIDs(%v) = %v, want %v", tt.sets, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("UnionLabelIDs(%v) = %v, want %v", tt.sets, got, tt.want)
					break
				}
			}
		})
	}
}

func TestEpisodeEstimate(t *testing.T) {
	clusters := map[string]TopicCluster{
		"0": {ID: "0", EpisodeIDs: []string{"a", "b"}},
		"1": {ID: "1", EpisodeIDs: []string{"c"}},
	}

	tests := []struct {
		name     string
		topicIDs []string
		want     int
	}{
		{"single topic", []string{"0"}, 2},
		{"multiple topics", []string{"0", "1"}, 3},
		{"unknown topic ignored", []string{"0", "99"}, 2},
		{"no topics", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := SpaceProposal{TopicIDs: tt.topicIDs}
			if got := p.EpisodeEstimate(clusters); got != tt.want {
				t.Errorf("EpisodeEstimate(%v) = %d, want %d", tt.topicIDs, got, tt.want)
			}
		})
	}
}
