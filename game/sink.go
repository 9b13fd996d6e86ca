package game

import (
	"github.com/pkg/errors"
)

// MultiSink 把每一行写到所有 sink，单个失败不影响其他
type MultiSink []DebugSink

func (m MultiSink) WriteLine(line string) error {
	var first error
	for _, sink := range m {
		if err := sink.WriteLine(line); err != nil && first == nil {
			first = errors.Wrapf(err, "sink %T", sink)
		}
	}
	return first
}
