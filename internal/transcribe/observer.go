package transcribe

// Observer is notified of every accepted record of a transcription job, in
// stream order. OnDone is called exactly once per job; res is nil when err
// is non-nil.
type Observer interface {
	OnInfo(job string, info Info, language string)
	OnSegment(job string, index int, seg Segment)
	OnDone(job string, res *Result, err error)
}

// Observers fans every notification out to each member in order.
type Observers []Observer

func (o Observers) OnInfo(job string, info Info, language string) {
	for _, ob := range o {
		ob.OnInfo(job, info, language)
	}
}

func (o Observers) OnSegment(job string, index int, seg Segment) {
	for _, ob := range o {
		ob.OnSegment(job, index, seg)
	}
}

func (o Observers) OnDone(job string, res *Result, err error) {
	for _, ob := range o {
		ob.OnDone(job, res, err)
	}
}
