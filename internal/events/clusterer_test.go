package events

import (
	"testing"
)

func TestClustererGroupsParameterizedMessages(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	c.Add("Connection refused from 192.168.1.1")
	c.Add("Connection refused from 10.0.0.1")
	c.Add("Connection refused from 172.16.0.1")

	patterns := c.TopPatterns(10)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(patterns))
	}
	if patterns[0].Template != "Connection refused from <*>" {
		t.Errorf("template = %q, want the address masked", patterns[0].Template)
	}
	if patterns[0].Count != 3 {
		t.Errorf("count = %d, want 3", patterns[0].Count)
	}

	_, total := c.Stats()
	if total != 3 {
		t.Errorf("total messages = %d, want 3", total)
	}
}

func TestClustererMergesSimilarMessages(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	c.Add("temperature reading high on sensor")
	c.Add("temperature reading low on sensor")

	patterns := c.TopPatterns(10)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want the two readings merged", len(patterns))
	}
	if patterns[0].Template != "temperature reading <*> on sensor" {
		t.Errorf("template = %q, want the varying token wildcarded", patterns[0].Template)
	}
	if patterns[0].Count != 2 {
		t.Errorf("count = %d, want 2", patterns[0].Count)
	}
}

func TestClustererSkipsBlankMessages(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	c.Add("")
	c.Add("   ")

	_, total := c.Stats()
	if total != 0 {
		t.Errorf("total = %d, want blank messages skipped", total)
	}
}

func TestClustererPatternsSorted(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	for i := 0; i < 10; i++ {
		c.Add("gateway heartbeat missed deadline")
	}
	for i := 0; i < 3; i++ {
		c.Add("valve actuator stalled")
	}

	patterns := c.TopPatterns(10)
	if len(patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(patterns))
	}
	if patterns[0].Count != 10 || patterns[1].Count != 3 {
		t.Errorf("counts = %d,%d, want most frequent first", patterns[0].Count, patterns[1].Count)
	}
}

func TestClustererLimit(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	messages := []string{
		"valve stuck wide open",
		"motor bearing running hot",
		"filter clogged beyond threshold",
		"pump cavitation detected upstream",
		"belt tension below spec",
	}
	for _, m := range messages {
		c.Add(m)
	}

	patterns := c.TopPatterns(3)
	if len(patterns) != 3 {
		t.Errorf("patterns = %d, want capped at 3", len(patterns))
	}
}

func TestClustererPercentages(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	for i := 0; i < 6; i++ {
		c.Add("gateway heartbeat missed deadline")
	}
	for i := 0; i < 4; i++ {
		c.Add("valve actuator stalled")
	}

	patterns := c.TopPatterns(10)
	if len(patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(patterns))
	}
	if patterns[0].Percentage < 59.9 || patterns[0].Percentage > 60.1 {
		t.Errorf("top percentage = %.1f, want 60", patterns[0].Percentage)
	}
	totalPct := patterns[0].Percentage + patterns[1].Percentage
	if totalPct < 99.0 || totalPct > 101.0 {
		t.Errorf("total percentage = %.1f, want ~100", totalPct)
	}
}

func TestClustererReset(t *testing.T) {
	t.Parallel()
	c := NewClusterer()

	c.Add("gateway heartbeat missed deadline")
	c.Reset()

	if patterns := c.TopPatterns(10); len(patterns) != 0 {
		t.Errorf("patterns after reset = %d, want 0", len(patterns))
	}
	if n, total := c.Stats(); n != 0 || total != 0 {
		t.Errorf("stats after reset = %d,%d, want 0,0", n, total)
	}
}
