package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolDeliverer(t *testing.T) {
	errEdit := errors.New("message too old")
	errSend := errors.New("rate limited")
	dest := Destination{Channel: "chat", Target: "room"}

	tests := []struct {
		name       string
		sender     func(*recorder) *fakeSender
		steps      func(context.Context, *ToolDeliverer)
		want       []call
		wantHandle string
	}{
		{
			name:   "edit in place",
			sender: func(r *recorder) *fakeSender { return &fakeSender{rec: r, canEdit: true} },
			steps: func(ctx context.Context, d *ToolDeliverer) {
				d.Start(ctx, "t1", "start")
				d.Update(ctx, "t1", "done")
			},
			want: []call{
				{Op: "send", Target: "m1", Content: "start"},
				{Op: "edit", Target: "m1", Content: "done"},
			},
			wantHandle: "m1",
		},
		{
			name:   "no edit capability",
			sender: func(r *recorder) *fakeSender { return &fakeSender{rec: r} },
			steps: func(ctx context.Context, d *ToolDeliverer) {
				d.Start(ctx, "t1", "start")
				d.Update(ctx, "t1", "running")
				d.Update(ctx, "t1", "done")
			},
			want: []call{
				{Op: "send", Target: "m1", Content: "start"},
				{Op: "send", Target: "m2", Content: "running"},
				{Op: "send", Target: "m3", Content: "done"},
			},
			wantHandle: "m1",
		},
		{
			name: "edit failure falls back and keeps handle",
			sender: func(r *recorder) *fakeSender {
				return &fakeSender{rec: r, canEdit: true, editErr: errEdit}
			},
			steps: func(ctx context.Context, d *ToolDeliverer) {
				d.Start(ctx, "t1", "start")
				d.Update(ctx, "t1", "running")
				d.Update(ctx, "t1", "done")
			},
			want: []call{
				{Op: "send", Target: "m1", Content: "start"},
				{Op: "edit_failed", Target: "m1", Content: "running"},
				{Op: "send", Target: "m2", Content: "running"},
				{Op: "edit_failed", Target: "m1", Content: "done"},
				{Op: "send", Target: "m3", Content: "done"},
			},
			wantHandle: "m1",
		},
		{
			name: "failed start adopts first successful send",
			sender: func(r *recorder) *fakeSender {
				return &fakeSender{rec: r, canEdit: true, sendErrs: []error{errSend}}
			},
			steps: func(ctx context.Context, d *ToolDeliverer) {
				d.Start(ctx, "t1", "start")
				d.Update(ctx, "t1", "running")
				d.Update(ctx, "t1", "done")
			},
			want: []call{
				{Op: "send_failed", Content: "start"},
				{Op: "send", Target: "m1", Content: "running"},
				{Op: "edit", Target: "m1", Content: "done"},
			},
			wantHandle: "m1",
		},
		{
			name:   "update without start",
			sender: func(r *recorder) *fakeSender { return &fakeSender{rec: r, canEdit: true} },
			steps: func(ctx context.Context, d *ToolDeliverer) {
				d.Update(ctx, "t9", "done")
			},
			want:       []call{{Op: "send", Target: "m1", Content: "done"}},
			wantHandle: "m1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			d := NewToolDeliverer(tt.sender(rec), dest, nil)
			tt.steps(context.Background(), d)

			if diff := cmp.Diff(tt.want, rec.all()); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			var id string
			for k := range d.handles {
				id = k
			}
			h, ok := d.Handle(id)
			require.True(t, ok)
			assert.Equal(t, tt.wantHandle, h.MessageID)
			assert.Equal(t, dest, h.Destination)
		})
	}
}

func TestToolDeliverer_HandleWithoutMessageID(t *testing.T) {
	rec := &recorder{}
	sender := &noIDSender{fakeSender{rec: rec, canEdit: true}}
	d := NewToolDeliverer(sender, Destination{}, nil)
	ctx := context.Background()

	d.Start(ctx, "t1", "start")
	d.Update(ctx, "t1", "done")

	assert.Equal(t, 2, rec.count("send"))
	assert.Zero(t, rec.count("edit"))
}

// noIDSender delivers messages it cannot address afterwards.
type noIDSender struct {
	fakeSender
}

func (s *noIDSender) Send(ctx context.Context, dest Destination, content string) (Handle, error) {
	h, err := s.fakeSender.Send(ctx, dest, content)
	h.MessageID = ""
	return h, err
}
