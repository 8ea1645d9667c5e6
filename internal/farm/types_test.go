package farm

import "testing"

func TestSectionColorCycles(t *testing.T) {
	if SectionColor(0) != SectionColor(10) {
		t.Errorf("ordinal 10 should wrap to the first palette entry")
	}
	if SectionColor(3) == SectionColor(4) {
		t.Errorf("adjacent ordinals should get distinct colors")
	}
	if SectionColor(-1) != SectionColor(0) {
		t.Errorf("negative ordinal should clamp to 0, got %s", SectionColor(-1))
	}
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		c := SectionColor(i)
		if seen[c] {
			t.Fatalf("palette repeats color %s within one cycle", c)
		}
		seen[c] = true
	}
}

func TestSectionName(t *testing.T) {
	cases := []struct {
		existing int
		want     string
	}{
		{0, "Section 1"},
		{1, "Section 2"},
		{11, "Section 12"},
	}
	for _, tc := range cases {
		if got := SectionName(tc.existing); got != tc.want {
			t.Errorf("SectionName(%d) = %q, want %q", tc.existing, got, tc.want)
		}
	}
}

func TestUpsertSectionPreservesPosition(t *testing.T) {
	m := &FarmMapping{Sections: []SectionData{
		{ID: "a", Name: "Section 1"},
		{ID: "b", Name: "Section 2"},
		{ID: "c", Name: "Section 3"},
	}}

	m.UpsertSection(SectionData{ID: "b", Name: "North Field"})
	if len(m.Sections) != 3 {
		t.Fatalf("expected 3 sections after update, got %d", len(m.Sections))
	}
	if m.Sections[1].Name != "North Field" {
		t.Errorf("section b not updated in place: %+v", m.Sections[1])
	}

	m.UpsertSection(SectionData{ID: "d", Name: "Section 4"})
	if len(m.Sections) != 4 || m.Sections[3].ID != "d" {
		t.Errorf("new section should append, got %+v", m.Sections)
	}
}

func TestRemoveSection(t *testing.T) {
	m := &FarmMapping{Sections: []SectionData{{ID: "a"}, {ID: "b"}}}

	if !m.RemoveSection("a") {
		t.Errorf("expected removal of existing section to report true")
	}
	if len(m.Sections) != 1 || m.Sections[0].ID != "b" {
		t.Fatalf("unexpected sections after removal: %+v", m.Sections)
	}
	if m.RemoveSection("nope") {
		t.Errorf("removing an unknown id should be a no-op")
	}
	if len(m.Sections) != 1 {
		t.Errorf("no-op removal must not change sections, got %d", len(m.Sections))
	}
}

func TestSectionLookup(t *testing.T) {
	m := &FarmMapping{Sections: []SectionData{{ID: "a", Name: "Section 1"}}}
	if s, ok := m.Section("a"); !ok || s.Name != "Section 1" {
		t.Errorf("lookup of existing section failed: %+v ok=%v", s, ok)
	}
	if _, ok := m.Section("z"); ok {
		t.Errorf("lookup of missing section should report false")
	}
}
