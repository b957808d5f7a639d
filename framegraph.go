package framegraph

import "github.com/gogpu/framegraph/frame"

// Graph is one render graph's per-frame state. Construct with NewGraph;
// add passes with the Add*Pass/InsertEarly* functions in pass.go, then
// call Execute once per frame.
type Graph = frame.Graph

// Config configures a Graph.
type Config = frame.Config

// CompletionObserver is notified of a frame's submission or completion.
type CompletionObserver = frame.CompletionObserver

// NewGraph constructs a Graph from cfg. cfg.Lock and cfg.Backend must be
// non-nil.
func NewGraph(cfg Config) *Graph { return frame.NewGraph(cfg) }

// NewActiveGraphLock returns a fresh lock serialising compilation of every
// Graph constructed against one backend/queue.
func NewActiveGraphLock() *frame.ActiveGraphLock { return frame.NewActiveGraphLock() }

// ActiveRenderGraph returns the graph currently compiling or executing
// anywhere in this process, if any.
func ActiveRenderGraph() (*Graph, bool) { return frame.ActiveRenderGraph() }

// GlobalSubmissionIndex returns the monotonic count of frame
// submissions accepted by a backend across every graph in this process.
func GlobalSubmissionIndex() uint64 { return frame.GlobalSubmissionIndex() }
