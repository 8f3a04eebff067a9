package models

import "testing"

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{
		TaskStatePending, TaskStateReady, TaskStateRunning,
		TaskStateCompleted, TaskStateFailed, TaskStateSkipped,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("state %q should be valid", s)
		}
	}
	for _, s := range []TaskState{"", "done", "PENDING"} {
		if s.Valid() {
			t.Errorf("state %q should be invalid", s)
		}
	}
}

func TestTaskStateTerminal(t *testing.T) {
	terminal := map[TaskState]bool{
		TaskStatePending:   false,
		TaskStateReady:     false,
		TaskStateRunning:   false,
		TaskStateCompleted: true,
		TaskStateFailed:    true,
		TaskStateSkipped:   true,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Errorf("state %q terminal = %v, want %v", s, got, want)
		}
	}
}

func TestPayloadClone(t *testing.T) {
	p := Payload{"a": 1, "b": "two"}
	c := p.Clone()

	c["a"] = 99
	if p["a"] != 1 {
		t.Error("mutating the clone must not affect the original")
	}
	if c["b"] != "two" {
		t.Errorf("clone lost value: %v", c["b"])
	}

	var nilPayload Payload
	if nilPayload.Clone() != nil {
		t.Error("nil payload must clone to nil")
	}
}
