package compute

import (
	"github.com/vexecdb/vexec/pkg/chunk"
)

type OperatorResult int

const (
	InvalidOpResult OperatorResult = 0
	NeedMoreInput   OperatorResult = 1
	haveMoreOutput  OperatorResult = 2
	Done            OperatorResult = 3
)

type SourceResult int

const (
	SrcResHaveMoreOutput SourceResult = iota
	SrcResDone
)

type SinkResult int

const (
	SinkResNeedMoreInput SinkResult = iota
	SinkResDone
)

// OperatorSource produces chunks, one batch per call.
type OperatorSource interface {
	GetChunk(output *chunk.Chunk) (SourceResult, error)
}

// OperatorExec is the capability surface of a physical operator.
type OperatorExec interface {
	Init() error
	Execute(input, output *chunk.Chunk) (OperatorResult, error)
	Close() error
}
