package work

import (
	"sync"
	"sync/atomic"

	"github.com/ledgerd/ledgerd/blockchain"
)

// Agent runs the nonce search for a single Task on its own goroutine,
// cancellably: a new Task preempts whatever the agent is currently mining,
// and Stop aborts in-flight work without blocking on it (spec.md §4.5 -
// "mining restarts whenever the tip changes while a mine is in flight").
type Agent struct {
	mu sync.Mutex

	workCh        chan *Task
	stop          chan struct{}
	quitCurrentOp chan struct{}
	returnCh      chan<- *Result

	difficulty int

	isMining int32
}

// NewAgent creates an agent that mines at difficulty.
func NewAgent(difficulty int) *Agent {
	return &Agent{
		difficulty: difficulty,
		stop:       make(chan struct{}, 1),
		workCh:     make(chan *Task, 1),
	}
}

// Work returns the channel the worker feeds new Tasks into.
func (a *Agent) Work() chan<- *Task { return a.workCh }

// SetReturnCh sets the channel completed Results are sent to.
func (a *Agent) SetReturnCh(ch chan<- *Result) { a.returnCh = ch }

// Start spins up the agent's update loop. A no-op if already started.
func (a *Agent) Start() {
	if !atomic.CompareAndSwapInt32(&a.isMining, 0, 1) {
		return
	}
	go a.update()
}

// Stop aborts any in-flight mine and shuts the agent down. A no-op if
// already stopped.
func (a *Agent) Stop() {
	if !atomic.CompareAndSwapInt32(&a.isMining, 1, 0) {
		return
	}
	a.stop <- struct{}{}
done:
	for {
		select {
		case <-a.workCh:
		default:
			break done
		}
	}
}

func (a *Agent) update() {
out:
	for {
		select {
		case task := <-a.workCh:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
			}
			a.quitCurrentOp = make(chan struct{})
			go a.mine(task, a.quitCurrentOp)
			a.mu.Unlock()
		case <-a.stop:
			a.mu.Lock()
			if a.quitCurrentOp != nil {
				close(a.quitCurrentOp)
				a.quitCurrentOp = nil
			}
			a.mu.Unlock()
			break out
		}
	}
}

func (a *Agent) mine(task *Task, quit <-chan struct{}) {
	ok, err := blockchain.MineBlock(task.Block, a.difficulty, quit)
	if err != nil {
		logger.Warn("block sealing failed", "err", err)
		a.returnCh <- nil
		return
	}
	if !ok {
		// Preempted by a newer tip (OnBlockAppended) or Stop; no result.
		a.returnCh <- nil
		return
	}
	logger.Info("sealed new block", "index", task.Block.Index, "hash", task.Block.Hash)
	a.returnCh <- &Result{Task: task, Block: task.Block}
}
