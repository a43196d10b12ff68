// Package worker provides a goroutine pool for concurrent job execution.
//
// The load engine runs one long-lived job per simulated user, so each Job
// receives the pool's context and is expected to return once it is
// cancelled. Stop cancels that context and waits for every running job.
//
// # Basic Usage
//
//	pool := worker.NewPool(10)
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	pool.Submit(func(ctx context.Context) {
//	    u.Run(ctx)
//	})
//
// Submit never blocks and reports false when the queue is full or the pool
// is stopping. The engine sizes the pool to the user count, so a rejected
// user means the run is already ending.
//
// # Configuration
//
//	config := worker.PoolConfig{
//	    NumWorkers:  8,
//	    QueueFactor: 2, // Queue size = 8 * 2 = 16
//	}
//	pool := worker.NewPoolWithConfig(config)
//
// A panicking job is recovered and counted; the worker keeps running.
package worker
