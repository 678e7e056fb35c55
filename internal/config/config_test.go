package config

import "testing"

func TestOrganizationGraph(t *testing.T) {
	c := Config{OrganizationGraphTemplate: "http://mu.semte.ch/graphs/organizations/~ORGANIZATION_ID~/LoketLB-berichtenGebruiker"}
	got := c.OrganizationGraph("23f94ae5")
	want := "http://mu.semte.ch/graphs/organizations/23f94ae5/LoketLB-berichtenGebruiker"
	if got != want {
		t.Fatalf("OrganizationGraph = %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	c := Load()
	if c.SparqlQueryEndpoint == "" {
		t.Fatal("no default query endpoint")
	}
	if c.GateQueueDepth <= 0 {
		t.Fatalf("gate queue depth = %d", c.GateQueueDepth)
	}
	if c.ShareFolder == "" {
		t.Fatal("no default share folder")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"WARN":    "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
	} {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
