package output

import (
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// barTemplate shows a running count and the latest message. The total is
// unknown up front because directories are discovered while comparing.
const barTemplate = `{{ string . "prefix" }} {{ counters . }} {{ etime . }} {{ string . "msg" }}`

// BarSink renders published messages on a progress bar, one tick per message
type BarSink struct {
	bar *pb.ProgressBar
}

// NewBarSink starts a bar writing to w with the given prefix
func NewBarSink(w io.Writer, prefix string) *BarSink {
	bar := pb.New(0).
		SetTemplateString(barTemplate).
		SetWriter(w).
		SetRefreshRate(200*time.Millisecond).
		SetMaxWidth(120).
		Set("prefix", prefix)
	bar.Start()
	return &BarSink{bar: bar}
}

// Publish counts msg and shows it as the current activity
func (s *BarSink) Publish(msg string) {
	if msg == "" {
		return
	}
	s.bar.Set("msg", msg)
	s.bar.Increment()
}

// Count returns the number of messages seen
func (s *BarSink) Count() int64 {
	return s.bar.Current()
}

// Finish stops the bar and clears the activity text
func (s *BarSink) Finish() {
	s.bar.Set("msg", "")
	s.bar.Finish()
}
