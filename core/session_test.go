package core

import "testing"

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("chat")
	if err != nil || c != CategoryChat {
		t.Fatalf("expected chat category, got %v (%v)", c, err)
	}
	c, err = ParseCategory("search")
	if err != nil || c != CategorySearch {
		t.Fatalf("expected search category, got %v (%v)", c, err)
	}
	if _, err := ParseCategory("briefing"); err == nil {
		t.Error("unknown category should be rejected")
	}
	if Category("").Valid() {
		t.Error("empty category should not be valid")
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession(CategoryChat, "weather talk", NumericUser(42))
	if s.ID == "" {
		t.Fatal("session should get an ID")
	}
	if !s.Active {
		t.Error("new sessions should be active")
	}
	if s.Category != CategoryChat {
		t.Errorf("category = %v", s.Category)
	}
	if n, ok := s.CreatedBy.Numeric(); !ok || n != 42 {
		t.Errorf("creator = %v", s.CreatedBy)
	}
	if s.Created.IsZero() || s.Updated.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestSession_Clone(t *testing.T) {
	team := int64(7)
	doc := "doc-1"
	s := NewSession(CategorySearch, "t", LegacyUser("u-legacy"))
	s.TeamID = &team
	s.DocID = &doc
	s.Metadata["source"] = "import"

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should be a different pointer")
	}

	clone.Metadata["source"] = "edited"
	*clone.TeamID = 99
	if s.Metadata["source"] != "import" {
		t.Error("original metadata should not see clone's edits")
	}
	if *s.TeamID != 7 {
		t.Error("original team pointer should not see clone's edits")
	}
}
