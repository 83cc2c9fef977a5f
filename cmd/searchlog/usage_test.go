package main

import (
	"testing"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	"github.com/matst80/slask-discovery/pkg/query"
)

func TestHandleEvents(t *testing.T) {
	body := `[
		{"id":"a","session_id":7,"event":0},
		{"id":"b","session_id":7,"event":1,"query":"covid","selection":{"keywords":[{"-_exists_":["keywords"]}],"@type":["Dataset","ComputationalTool"]}},
		{"id":"b","session_id":7,"event":1,"query":"covid","selection":{"keywords":["flu"]}},
		{"id":"c","session_id":7,"event":1,"failed":true,"selection":{"keywords":["rna"]}}
	]`
	var events []trackedEvent
	if err := jsoncompat.Unmarshal([]byte(body), &events); err != nil {
		t.Fatal(err)
	}
	if !events[1].Selection.Contains("keywords", query.Missing("keywords")) {
		t.Fatalf("Expected exists filter to decode, got %v", events[1].Selection)
	}

	u := newUsage()
	if err := u.HandleEvents(events); err != nil {
		t.Fatal(err)
	}
	if u.Searches(7) != 2 {
		t.Errorf("Expected redelivered event to be ignored, got %d searches", u.Searches(7))
	}
	if u.Selected("keywords") != 1 || u.Selected("@type") != 2 {
		t.Errorf("Expected only successful searches counted, got %d keywords %d types", u.Selected("keywords"), u.Selected("@type"))
	}
}

func TestValueKind(t *testing.T) {
	if valueKind(query.Missing("date")) != "missing" || valueKind(query.StringTerm("2020")) != "term" {
		t.Errorf("Unexpected value kinds")
	}
}

func TestHandleEventsBoundsMemory(t *testing.T) {
	u := newUsage()
	u.limit = 3
	var events []trackedEvent
	for i := 0; i < 10; i++ {
		events = append(events, trackedEvent{Id: string(rune('a' + i)), SessionId: i, Event: 1})
	}
	if err := u.HandleEvents(events); err != nil {
		t.Fatal(err)
	}
	if len(u.seen) > 3 || len(u.sessions) > 3 {
		t.Errorf("Expected at most 3 tracked ids and sessions, got %d and %d", len(u.seen), len(u.sessions))
	}
	if u.Searches(9) != 1 {
		t.Errorf("Expected the latest session to be counted, got %d", u.Searches(9))
	}
}
