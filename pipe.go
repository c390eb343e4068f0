package fudge

// Pipe couples a reader to a writer, forwarding the event sequence one
// event at a time (spec.md §4.6). It is single-threaded and synchronous:
// Pump does not return until the source is drained or aborted.
type Pipe struct {
	src     eventSource
	sink    eventSink
	onEnd   func()
	aborted bool
}

// NewPipe returns a Pipe that forwards events from src to sink. onEnd, if
// non-nil, is invoked after each top-level message so consumers can drain
// incrementally (e.g. calling Writer.Flush on a streaming sink).
func NewPipe(src eventSource, sink eventSink, onEnd func()) *Pipe {
	return &Pipe{src: src, sink: sink, onEnd: onEnd}
}

// Abort releases the reader at the next event boundary without consuming
// the rest of the stream.
func (p *Pipe) Abort() { p.aborted = true }

// Pump forwards events until the source is drained, an error occurs, or
// Abort is called. It returns the number of top-level messages forwarded.
func (p *Pipe) Pump() (int, error) {
	count := 0
	for p.src.HasNext() {
		if p.aborted {
			return count, nil
		}
		ev, err := p.src.MoveNext()
		if err != nil {
			return count, err
		}
		if err := p.sink.Write(ev); err != nil {
			return count, err
		}
		if ev.Kind == MessageEnd {
			count++
			if p.onEnd != nil {
				p.onEnd()
			}
		}
	}
	return count, nil
}
