package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestDetachedKeepsTraceDataDropsDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	parent = WithTraceData(parent, &TraceData{TraceID: "t1", RequestID: "r1"})

	d := Detached(parent)
	if _, ok := d.Deadline(); ok {
		t.Fatalf("detached context has a deadline")
	}
	td := GetTraceData(d)
	if td == nil || td.TraceID != "t1" || td.RequestID != "r1" {
		t.Fatalf("trace data=%+v", td)
	}
	td.TaskID = "task"
	if GetTraceData(parent).TaskID != "" {
		t.Fatalf("detached trace data aliases the parent")
	}
}

func TestLogFields(t *testing.T) {
	if got := LogFields(context.Background()); got != nil {
		t.Fatalf("fields=%v", got)
	}
	ctx := WithTraceData(context.Background(), &TraceData{RequestID: "r", TaskID: "x"})
	got := LogFields(ctx)
	if len(got) != 4 || got[0] != "request_id" || got[2] != "task_id" {
		t.Fatalf("fields=%v", got)
	}
}
