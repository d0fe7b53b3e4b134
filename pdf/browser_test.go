package pdf

import (
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
)

func TestWithinReturnsResult(t *testing.T) {
	aborted := false
	err := within(time.Second, func() error { return errors.New("no chrome") }, func() { aborted = true })
	assert.EqualError(t, err, "no chrome")
	assert.False(t, aborted)
}

func TestWithinAbortsHungCall(t *testing.T) {
	release := make(chan struct{})
	start := time.Now()

	err := within(20*time.Millisecond, func() error {
		<-release
		return errors.New("context canceled")
	}, func() { close(release) })

	assert.ErrorIs(t, err, errTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsNetworkIdle(t *testing.T) {
	frame := cdp.FrameID("main")
	loader := cdp.LoaderID("nav-2")

	tests := []struct {
		name  string
		event page.EventLifecycleEvent
		want  bool
	}{
		{name: "navigation idle", event: page.EventLifecycleEvent{Name: "networkIdle", FrameID: frame, LoaderID: loader}, want: true},
		{name: "blank page replay", event: page.EventLifecycleEvent{Name: "networkIdle", FrameID: frame, LoaderID: "blank"}},
		{name: "iframe", event: page.EventLifecycleEvent{Name: "networkIdle", FrameID: "child", LoaderID: loader}},
		{name: "other event", event: page.EventLifecycleEvent{Name: "load", FrameID: frame, LoaderID: loader}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNetworkIdle(&tt.event, frame, loader))
		})
	}
}
