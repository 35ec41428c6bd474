package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

func TestEventDocumentID(t *testing.T) {
	tests := []struct {
		name string
		e    event.Event
		want string
	}{
		{
			name: "created",
			e: event.Event{Type: event.DocumentCreated, Data: event.DocumentCreatedData{
				State: &types.DocumentState{ID: "doc-1"},
			}},
			want: "doc-1",
		},
		{
			name: "change applied",
			e: event.Event{Type: event.DocumentChangeApplied, Data: event.DocumentChangeAppliedData{
				DocumentID: "doc-2",
			}},
			want: "doc-2",
		},
		{
			name: "reverted",
			e: event.Event{Type: event.DocumentReverted, Data: event.DocumentRevertedData{
				DocumentID: "doc-3",
			}},
			want: "doc-3",
		},
		{
			name: "approval requested",
			e: event.Event{Type: event.ApprovalRequested, Data: event.ApprovalRequestedData{
				DocumentID: "doc-4",
			}},
			want: "doc-4",
		},
		{
			name: "usage has no document",
			e:    event.Event{Type: event.UsageRecorded, Data: event.UsageRecordedData{}},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eventDocumentID(tt.e))
		})
	}
}
