package docs

import (
	"strings"
	"testing"
)

func TestAll_ReturnsTopics(t *testing.T) {
	topics := All()
	if len(topics) == 0 {
		t.Fatal("All() returned no topics")
	}
	if topics[0].Name != "quickstart" {
		t.Errorf("first topic = %q, want %q", topics[0].Name, "quickstart")
	}
}

func TestAll_NoDuplicateNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, topic := range All() {
		if seen[topic.Name] {
			t.Errorf("duplicate topic name: %q", topic.Name)
		}
		seen[topic.Name] = true
	}
}

func TestAll_AllFieldsPopulated(t *testing.T) {
	for _, topic := range All() {
		if topic.Name == "" {
			t.Error("topic has empty Name")
		}
		if topic.Title == "" {
			t.Errorf("topic %q has empty Title", topic.Name)
		}
		if topic.Summary == "" {
			t.Errorf("topic %q has empty Summary", topic.Name)
		}
		if topic.Content == "" {
			t.Errorf("topic %q has empty Content", topic.Name)
		}
	}
}

func TestConfigTopic_ListsEveryEnvVar(t *testing.T) {
	topic, err := Get("config")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"FLEET_TIMEOUT", "FLEET_CONCURRENCY", "FLEET_CORES", "FLEET_SSHSYNC_CONFIG",
		"FLEET_SSH_CONFIG", "FLEET_SSH_BIN", "FLEET_LOG_LEVEL", "FLEET_PLAN_DIR",
	} {
		if !strings.Contains(topic.Content, name) {
			t.Errorf("config topic missing %s", name)
		}
	}
}

func TestGet_Found(t *testing.T) {
	topic, err := Get("scoring")
	if err != nil {
		t.Fatalf("Get(scoring) error: %v", err)
	}
	if topic.Name != "scoring" {
		t.Errorf("Name = %q, want %q", topic.Name, "scoring")
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := Get("nonexistent")
	if err == nil {
		t.Fatal("Get(nonexistent) should return error")
	}
	if !strings.Contains(err.Error(), "fleet docs") {
		t.Errorf("error %q should hint at 'fleet docs'", err)
	}
}

func TestGet_CaseInsensitive(t *testing.T) {
	if _, err := Get("Plans"); err != nil {
		t.Fatalf("Get(Plans) error: %v", err)
	}
}

func TestSearch(t *testing.T) {
	got := Search("FLEET_CORES")
	names := make([]string, len(got))
	for i, topic := range got {
		names[i] = topic.Name
	}
	if strings.Join(names, ",") != "scoring,config" {
		t.Errorf("Search(FLEET_CORES) = %v, want [scoring config]", names)
	}
	if len(Search("")) != 0 {
		t.Error("Search(\"\") should return nothing")
	}
	if len(Search("no-such-term-anywhere")) != 0 {
		t.Error("Search of unknown term should return nothing")
	}
}
