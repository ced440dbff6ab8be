package orchestrator

import (
	"context"
	"sync"
)

// Dispatch enqueues event against every agent subscribed to event.Name.
// Each subscribed agent runs independently and concurrently; per spec §5
// ("Across agents that subscribe to the same event, execution is concurrent
// and independent; results are not merged") failures are collected but one
// agent's error does not cancel the others.
func (o *Orchestrator) Dispatch(ctx context.Context, event Event) []error {
	subscribers := o.workflow.Subscribers(event.Name)
	if len(subscribers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(subscribers))
	for i, agent := range subscribers {
		wg.Add(1)
		go func(i int, agent Agent) {
			defer wg.Done()
			_, err := o.execute(ctx, FlowId{Agent: agent.ID}, event, map[string]any{}, map[FlowId]bool{})
			errs[i] = err
		}(i, agent)
	}
	wg.Wait()

	out := errs[:0]
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
